package models

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// QuestionType selects how a question is presented and how its answers are normalized.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionRating         QuestionType = "rating"
	QuestionText           QuestionType = "text"
	QuestionYesNo          QuestionType = "yes_no"
)

// QuestionTypes lists every supported type in display order.
var QuestionTypes = []QuestionType{QuestionMultipleChoice, QuestionRating, QuestionText, QuestionYesNo}

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionRating, QuestionText, QuestionYesNo:
		return true
	}
	return false
}

// User is an account allowed to sign in. PassHash holds a bcrypt hash, never the password.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	PassHash  []byte    `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// Questionnaire is a named set of ordered questions offered to respondents.
type Questionnaire struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"` // optional; empty is stored as NULL
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Question belongs to a questionnaire. Options is non-nil only for multiple choice.
type Question struct {
	ID              int64        `json:"id"`
	QuestionnaireID int64        `json:"questionnaire_id"`
	Text            string       `json:"text"`
	Type            QuestionType `json:"type"`
	Options         []string     `json:"options,omitempty"`
	OrderIndex      int          `json:"order_index"`
	IsRequired      bool         `json:"is_required"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Response is one respondent's completed submission.
type Response struct {
	ID              int64     `json:"id"`
	QuestionnaireID int64     `json:"questionnaire_id"`
	RespondentName  string    `json:"respondent_name,omitempty"`
	RespondentAge   *int      `json:"respondent_age,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Answer is the normalized value for one question within a response.
type Answer struct {
	ID          int64     `json:"id"`
	ResponseID  int64     `json:"response_id"`
	QuestionID  int64     `json:"question_id"`
	AnswerText  *string   `json:"answer_text,omitempty"`
	AnswerValue *int      `json:"answer_value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Text returns the answer text or "" when absent.
func (a *Answer) Text() string {
	if a == nil || a.AnswerText == nil {
		return ""
	}
	return *a.AnswerText
}

// ResponseStatistics aggregates respondent data for a questionnaire.
// All fields are zero when nothing has been collected.
type ResponseStatistics struct {
	TotalResponses int     `json:"total_responses"`
	AvgAge         float64 `json:"avg_age"`
	MinAge         int     `json:"min_age"`
	MaxAge         int     `json:"max_age"`
}

// AnswerCount is one distinct (text, value) pair recorded for a question.
type AnswerCount struct {
	AnswerText  *string `json:"answer_text"`
	AnswerValue *int    `json:"answer_value"`
	Count       int     `json:"count"`
}

func StringPtr(s string) *string { return &s }

func IntPtr(i int) *int { return &i }
