package survey

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soaringjerry/satisfacao/internal/models"
	"github.com/soaringjerry/satisfacao/internal/monitoring"
)

type State string

const (
	StateNotStarted State = "not_started"
	StateIntro      State = "intro"
	StateAnswering  State = "answering"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is possible on the session.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

type Mode string

const (
	ModeRespondent Mode = "respondent"
	// ModePreview is the administrator's test run: no intro, fixed respondent name.
	ModePreview Mode = "preview"
)

const (
	PreviewName   = "Administrador"
	AnonymousName = "Anônimo"
	MaxAge        = 150
)

// ErrInvalidState is wrapped by every error caused by calling a transition in the wrong state.
var ErrInvalidState = errors.New("invalid state transition")

type RespondentInfo struct {
	Name string `json:"name,omitempty"`
	Age  *int   `json:"age,omitempty"`
}

// Session is one respondent's pass through a questionnaire. It is a plain value: it can be
// saved with Marshal and restored with Engine.Resume. A Session is not safe for concurrent use.
type Session struct {
	ID            string                `json:"id"`
	Mode          Mode                  `json:"mode"`
	State         State                 `json:"state"`
	Questionnaire *models.Questionnaire `json:"questionnaire"`
	Questions     []*models.Question    `json:"questions"`
	Index         int                   `json:"index"`
	// Answers maps question id to the normalized raw answer.
	Answers    map[int64]string `json:"answers"`
	Respondent RespondentInfo   `json:"respondent"`
	ResponseID int64            `json:"response_id,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
}

func invalidState(action string, st State) error {
	if st == "" {
		st = StateNotStarted
	}
	return &models.Error{Code: models.ErrorValidation, Message: fmt.Sprintf("cannot %s while %s", action, st), Err: ErrInvalidState}
}

// Begin records the optional respondent details and moves from intro to the first question.
func (s *Session) Begin(info RespondentInfo) error {
	if s.State != StateIntro {
		return invalidState("begin", s.State)
	}
	if info.Age != nil && (*info.Age < 0 || *info.Age > MaxAge) {
		return models.NewValidationError(fmt.Sprintf("age must be between 0 and %d", MaxAge))
	}
	s.Respondent = RespondentInfo{Name: strings.TrimSpace(info.Name), Age: info.Age}
	s.State = StateAnswering
	s.Index = 0
	return nil
}

// Current returns the question being answered, or nil outside the answering state.
func (s *Session) Current() *models.Question {
	if s.State != StateAnswering || s.Index < 0 || s.Index >= len(s.Questions) {
		return nil
	}
	return s.Questions[s.Index]
}

// SubmitAnswer validates raw against the current question and advances. A blank answer to an
// optional question skips it and clears any earlier answer. After the last question the
// session moves to submitting. On error nothing changes.
func (s *Session) SubmitAnswer(raw string) error {
	q := s.Current()
	if q == nil {
		return invalidState("submit an answer", s.State)
	}
	c, err := codecFor(q)
	if err != nil {
		return err
	}
	typ := string(q.Type)
	if strings.TrimSpace(raw) == "" {
		if q.IsRequired {
			monitoring.SurveyAnswers.WithLabelValues(typ, "rejected").Inc()
			return models.NewValidationError("an answer is required for this question")
		}
		delete(s.Answers, q.ID)
		monitoring.SurveyAnswers.WithLabelValues(typ, "skipped").Inc()
	} else {
		norm, err := c.check(q, raw)
		if err != nil {
			monitoring.SurveyAnswers.WithLabelValues(typ, "rejected").Inc()
			return err
		}
		if s.Answers == nil {
			s.Answers = map[int64]string{}
		}
		s.Answers[q.ID] = norm
		monitoring.SurveyAnswers.WithLabelValues(typ, "accepted").Inc()
	}
	if s.Index == len(s.Questions)-1 {
		s.State = StateSubmitting
		return nil
	}
	s.Index++
	return nil
}

// GoBack returns to the previous question, keeping every recorded answer.
func (s *Session) GoBack() error {
	if s.State != StateAnswering {
		return invalidState("go back", s.State)
	}
	if s.Index == 0 {
		return &models.Error{Code: models.ErrorValidation, Message: "already at the first question", Err: ErrInvalidState}
	}
	s.Index--
	return nil
}

// Answer returns the recorded raw answer for a question.
func (s *Session) Answer(questionID int64) (string, bool) {
	v, ok := s.Answers[questionID]
	return v, ok
}

// Progress returns the 1-based position of the current question and the question count.
func (s *Session) Progress() (int, int) {
	return s.Index + 1, len(s.Questions)
}

func (s *Session) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// respondentName is the name persisted with the response.
func (s *Session) respondentName() string {
	if s.Mode == ModePreview {
		return PreviewName
	}
	if s.Respondent.Name == "" {
		return AnonymousName
	}
	return s.Respondent.Name
}

// buildAnswers encodes the recorded answers in presentation order. It returns the index of the
// first required question without an answer, or -1.
func (s *Session) buildAnswers() ([]*models.Answer, int, error) {
	out := make([]*models.Answer, 0, len(s.Answers))
	missing := -1
	for i, q := range s.Questions {
		raw, ok := s.Answers[q.ID]
		if !ok {
			if q.IsRequired && missing < 0 {
				missing = i
			}
			continue
		}
		a, err := Encode(q, raw)
		if err != nil {
			return nil, -1, err
		}
		out = append(out, a)
	}
	return out, missing, nil
}
