package services

import "github.com/soaringjerry/satisfacao/internal/models"

// QuestionInput is the authoring payload for one question. Text and options are trimmed
// before validation.
type QuestionInput struct {
	Text       string              `json:"text" validate:"required,max=500"`
	Type       models.QuestionType `json:"type" validate:"required"`
	Options    []string            `json:"options,omitempty" validate:"omitempty,dive,max=200"`
	OrderIndex int                 `json:"order_index" validate:"gte=0"`
	IsRequired bool                `json:"is_required"`
}

type questionnaireInput struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
}

// Tally is one distinct answer with its count, labelled for display.
type Tally struct {
	Label       string  `json:"label"`
	AnswerText  *string `json:"answer_text,omitempty"`
	AnswerValue *int    `json:"answer_value,omitempty"`
	Count       int     `json:"count"`
}

type QuestionReport struct {
	Question *models.Question `json:"question"`
	Tallies  []Tally          `json:"tallies"`
	Answered int              `json:"answered"`
	// AverageRating is set for rating questions with at least one answer.
	AverageRating *float64 `json:"average_rating,omitempty"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// QuestionnaireReport is everything the reports screen shows for one questionnaire.
type QuestionnaireReport struct {
	Questionnaire *models.Questionnaire      `json:"questionnaire"`
	Statistics    *models.ResponseStatistics `json:"statistics"`
	Questions     []QuestionReport           `json:"questions"`
	Timeseries    []DailyCount               `json:"timeseries"`
}

type DashboardEntry struct {
	Questionnaire  *models.Questionnaire `json:"questionnaire"`
	TotalResponses int                   `json:"total_responses"`
	QuestionCount  int                   `json:"question_count"`
}
