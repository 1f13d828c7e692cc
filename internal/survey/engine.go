package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soaringjerry/satisfacao/internal/logger"
	"github.com/soaringjerry/satisfacao/internal/models"
	"github.com/soaringjerry/satisfacao/internal/monitoring"
)

type Store interface {
	GetQuestionnaire(ctx context.Context, id int64) (*models.Questionnaire, error)
	ListQuestions(ctx context.Context, questionnaireID int64) ([]*models.Question, error)
	CommitResponse(ctx context.Context, r *models.Response, answers []*models.Answer) (int64, error)
}

// Engine creates sessions and performs the transitions that touch the store. Every store call
// is awaited before the session changes state.
type Engine struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewEngine(store Store, log *zap.Logger) *Engine {
	return &Engine{
		store: store,
		log:   logger.Or(log).Named("survey"),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// StartSurvey opens a respondent session on an active questionnaire, waiting in intro.
func (e *Engine) StartSurvey(ctx context.Context, questionnaireID int64) (*Session, error) {
	s, err := e.load(ctx, questionnaireID, ModeRespondent)
	if err != nil {
		return nil, err
	}
	s.State = StateIntro
	e.started(s)
	return s, nil
}

// StartPreview opens an administrator test run. Intro is skipped and the questionnaire may be
// inactive.
func (e *Engine) StartPreview(ctx context.Context, questionnaireID int64) (*Session, error) {
	s, err := e.load(ctx, questionnaireID, ModePreview)
	if err != nil {
		return nil, err
	}
	s.Respondent = RespondentInfo{Name: PreviewName}
	s.State = StateAnswering
	e.started(s)
	return s, nil
}

func (e *Engine) load(ctx context.Context, questionnaireID int64, mode Mode) (*Session, error) {
	qn, questions, err := e.fetch(ctx, questionnaireID, mode)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:            e.newID(),
		Mode:          mode,
		State:         StateNotStarted,
		Questionnaire: qn,
		Questions:     questions,
		Answers:       map[int64]string{},
		StartedAt:     e.now(),
	}, nil
}

func (e *Engine) fetch(ctx context.Context, questionnaireID int64, mode Mode) (*models.Questionnaire, []*models.Question, error) {
	qn, err := e.store.GetQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return nil, nil, err
	}
	if mode == ModeRespondent && !qn.IsActive {
		return nil, nil, models.NewNotFoundError(fmt.Sprintf("questionnaire %d is not open", questionnaireID))
	}
	questions, err := e.store.ListQuestions(ctx, questionnaireID)
	if err != nil {
		return nil, nil, err
	}
	if len(questions) == 0 {
		return nil, nil, models.NewValidationError(fmt.Sprintf("questionnaire %d has no questions", questionnaireID))
	}
	return qn, questions, nil
}

func (e *Engine) started(s *Session) {
	monitoring.SurveySessions.WithLabelValues(string(s.Mode), "started").Inc()
	e.log.Info("survey session started",
		zap.String("session", s.ID),
		zap.String("mode", string(s.Mode)),
		zap.Int64("questionnaire_id", s.Questionnaire.ID),
		zap.Int("questions", len(s.Questions)))
}

// Commit persists a submitting session as one response with all its answers. A required
// question without an answer sends the session back to that question. A store failure moves
// the session to failed; it is not retried.
func (e *Engine) Commit(ctx context.Context, s *Session) error {
	if s.State != StateSubmitting {
		return invalidState("commit", s.State)
	}
	if s.Questionnaire == nil {
		return models.NewValidationError("session has no questionnaire")
	}
	answers, missing, err := s.buildAnswers()
	if err != nil {
		return e.fail(s, err)
	}
	if missing >= 0 {
		s.State = StateAnswering
		s.Index = missing
		return models.NewValidationError(fmt.Sprintf("question %d requires an answer", missing+1))
	}
	resp := &models.Response{
		QuestionnaireID: s.Questionnaire.ID,
		RespondentName:  s.respondentName(),
		RespondentAge:   s.Respondent.Age,
		CompletedAt:     e.now(),
	}
	id, err := e.store.CommitResponse(ctx, resp, answers)
	if err != nil {
		return e.fail(s, err)
	}
	s.ResponseID = id
	s.State = StateCompleted
	monitoring.SurveySessions.WithLabelValues(string(s.Mode), "completed").Inc()
	e.log.Info("survey response saved",
		zap.String("session", s.ID),
		zap.Int64("response_id", id),
		zap.Int("answers", len(answers)))
	return nil
}

func (e *Engine) fail(s *Session, err error) error {
	s.State = StateFailed
	s.Error = err.Error()
	monitoring.SurveySessions.WithLabelValues(string(s.Mode), "failed").Inc()
	e.log.Error("survey commit failed", zap.String("session", s.ID), zap.Error(err))
	return err
}

// Restart opens a fresh session on the same questionnaire. A completed respondent session
// starts over at intro; a completed preview hands control back to the caller and cannot be
// restarted. A failed session of either mode may be restarted.
func (e *Engine) Restart(ctx context.Context, s *Session) (*Session, error) {
	if s.Questionnaire == nil {
		return nil, models.NewValidationError("session has no questionnaire")
	}
	switch {
	case s.State == StateFailed && s.Mode == ModePreview:
		return e.StartPreview(ctx, s.Questionnaire.ID)
	case s.State == StateFailed, s.State == StateCompleted && s.Mode == ModeRespondent:
		return e.StartSurvey(ctx, s.Questionnaire.ID)
	}
	return nil, invalidState("restart", s.State)
}

// Resume restores a session saved with Session.Marshal. The questionnaire must still present the
// same questions in the same order, and every recorded answer must still be valid.
func (e *Engine) Resume(ctx context.Context, data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, models.NewValidationError("saved session is unreadable: " + err.Error())
	}
	switch s.State {
	case StateIntro, StateAnswering, StateSubmitting:
	default:
		return nil, invalidState("resume", s.State)
	}
	if s.Mode != ModeRespondent && s.Mode != ModePreview {
		return nil, models.NewValidationError(fmt.Sprintf("saved session has unknown mode %q", s.Mode))
	}
	if s.Questionnaire == nil {
		return nil, models.NewValidationError("saved session has no questionnaire")
	}
	qn, questions, err := e.fetch(ctx, s.Questionnaire.ID, s.Mode)
	if err != nil {
		return nil, err
	}
	if len(questions) != len(s.Questions) {
		return nil, models.NewValidationError("questionnaire changed since the session was saved")
	}
	known := make(map[int64]*models.Question, len(questions))
	for i, q := range questions {
		if s.Questions[i] == nil || s.Questions[i].ID != q.ID {
			return nil, models.NewValidationError("questionnaire changed since the session was saved")
		}
		known[q.ID] = q
	}
	for qid, raw := range s.Answers {
		q, ok := known[qid]
		if !ok {
			return nil, models.NewValidationError(fmt.Sprintf("saved answer for unknown question %d", qid))
		}
		c, err := codecFor(q)
		if err != nil {
			return nil, err
		}
		if _, err := c.check(q, raw); err != nil {
			return nil, fmt.Errorf("saved answer for question %d: %w", qid, err)
		}
	}
	if s.Index < 0 || s.Index >= len(questions) {
		return nil, models.NewValidationError(fmt.Sprintf("saved session index %d out of range", s.Index))
	}
	if s.Answers == nil {
		s.Answers = map[int64]string{}
	}
	s.Questionnaire = qn
	s.Questions = questions
	monitoring.SurveySessions.WithLabelValues(string(s.Mode), "resumed").Inc()
	e.log.Info("survey session resumed", zap.String("session", s.ID), zap.String("state", string(s.State)), zap.Int("index", s.Index))
	return &s, nil
}
