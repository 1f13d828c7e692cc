package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/soaringjerry/satisfacao/internal/logger"
	"github.com/soaringjerry/satisfacao/internal/models"
)

type QuestionnaireStore interface {
	CreateQuestionnaire(ctx context.Context, q *models.Questionnaire) (int64, error)
	GetQuestionnaire(ctx context.Context, id int64) (*models.Questionnaire, error)
	ListQuestionnaires(ctx context.Context, activeOnly bool) ([]*models.Questionnaire, error)
	UpdateQuestionnaire(ctx context.Context, q *models.Questionnaire) error
	SetQuestionnaireActive(ctx context.Context, id int64, active bool) error
	DeleteQuestionnaire(ctx context.Context, id int64) error
	CreateQuestion(ctx context.Context, q *models.Question) (int64, error)
	CreateQuestions(ctx context.Context, qs []*models.Question) ([]int64, error)
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	ListQuestions(ctx context.Context, questionnaireID int64) ([]*models.Question, error)
	UpdateQuestion(ctx context.Context, q *models.Question) error
	DeleteQuestion(ctx context.Context, id int64) error
	NextOrderIndex(ctx context.Context, questionnaireID int64) (int, error)
	ReorderQuestions(ctx context.Context, questionnaireID int64, order []int64) error
}

// QuestionnaireService is the authoring API used by the administrator screens.
type QuestionnaireService struct {
	store QuestionnaireStore
	log   *zap.Logger
}

func NewQuestionnaireService(store QuestionnaireStore, log *zap.Logger) *QuestionnaireService {
	return &QuestionnaireService{store: store, log: logger.Or(log).Named("authoring")}
}

// CreateQuestionnaire creates an active questionnaire. The title must be non-blank.
func (s *QuestionnaireService) CreateQuestionnaire(ctx context.Context, title, description string) (int64, error) {
	in := questionnaireInput{Title: strings.TrimSpace(title), Description: strings.TrimSpace(description)}
	if in.Title == "" {
		return 0, models.NewValidationError("questionnaire title is required")
	}
	if err := validateInput(in); err != nil {
		return 0, err
	}
	q := &models.Questionnaire{Title: in.Title, Description: in.Description, IsActive: true}
	id, err := s.store.CreateQuestionnaire(ctx, q)
	if err != nil {
		return 0, err
	}
	s.log.Info("questionnaire created", zap.Int64("id", id), zap.String("title", q.Title))
	return id, nil
}

func (s *QuestionnaireService) GetQuestionnaire(ctx context.Context, id int64) (*models.Questionnaire, error) {
	return s.store.GetQuestionnaire(ctx, id)
}

func (s *QuestionnaireService) ListQuestionnaires(ctx context.Context, activeOnly bool) ([]*models.Questionnaire, error) {
	return s.store.ListQuestionnaires(ctx, activeOnly)
}

func (s *QuestionnaireService) UpdateQuestionnaire(ctx context.Context, id int64, title, description string) error {
	in := questionnaireInput{Title: strings.TrimSpace(title), Description: strings.TrimSpace(description)}
	if in.Title == "" {
		return models.NewValidationError("questionnaire title is required")
	}
	if err := validateInput(in); err != nil {
		return err
	}
	q, err := s.store.GetQuestionnaire(ctx, id)
	if err != nil {
		return err
	}
	q.Title, q.Description = in.Title, in.Description
	return s.store.UpdateQuestionnaire(ctx, q)
}

// SetActive opens or closes a questionnaire to respondents.
func (s *QuestionnaireService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.store.SetQuestionnaireActive(ctx, id, active); err != nil {
		return err
	}
	s.log.Info("questionnaire visibility changed", zap.Int64("id", id), zap.Bool("active", active))
	return nil
}

func (s *QuestionnaireService) DeleteQuestionnaire(ctx context.Context, id int64) error {
	if err := s.store.DeleteQuestionnaire(ctx, id); err != nil {
		return err
	}
	s.log.Info("questionnaire deleted", zap.Int64("id", id))
	return nil
}

// CreateQuestion adds a question at in.OrderIndex.
func (s *QuestionnaireService) CreateQuestion(ctx context.Context, questionnaireID int64, in QuestionInput) (int64, error) {
	q, err := buildQuestion(questionnaireID, in)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return 0, err
	}
	return s.store.CreateQuestion(ctx, q)
}

// AppendQuestion adds a question after the current last one, ignoring in.OrderIndex.
func (s *QuestionnaireService) AppendQuestion(ctx context.Context, questionnaireID int64, in QuestionInput) (int64, error) {
	q, err := buildQuestion(questionnaireID, in)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return 0, err
	}
	next, err := s.store.NextOrderIndex(ctx, questionnaireID)
	if err != nil {
		return 0, err
	}
	q.OrderIndex = next
	return s.store.CreateQuestion(ctx, q)
}

// CreateQuestions validates every input first and then stores them all or none.
func (s *QuestionnaireService) CreateQuestions(ctx context.Context, questionnaireID int64, ins []QuestionInput) ([]int64, error) {
	if len(ins) == 0 {
		return []int64{}, nil
	}
	qs := make([]*models.Question, 0, len(ins))
	for i, in := range ins {
		q, err := buildQuestion(questionnaireID, in)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		qs = append(qs, q)
	}
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return nil, err
	}
	ids, err := s.store.CreateQuestions(ctx, qs)
	if err != nil {
		return nil, err
	}
	s.log.Info("questions created", zap.Int64("questionnaire_id", questionnaireID), zap.Int("count", len(ids)))
	return ids, nil
}

func (s *QuestionnaireService) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	return s.store.GetQuestion(ctx, id)
}

// ListQuestions returns questions in presentation order.
func (s *QuestionnaireService) ListQuestions(ctx context.Context, questionnaireID int64) ([]*models.Question, error) {
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return nil, err
	}
	return s.store.ListQuestions(ctx, questionnaireID)
}

func (s *QuestionnaireService) UpdateQuestion(ctx context.Context, id int64, in QuestionInput) error {
	existing, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	q, err := buildQuestion(existing.QuestionnaireID, in)
	if err != nil {
		return err
	}
	q.ID = id
	return s.store.UpdateQuestion(ctx, q)
}

func (s *QuestionnaireService) DeleteQuestion(ctx context.Context, id int64) error {
	return s.store.DeleteQuestion(ctx, id)
}

func (s *QuestionnaireService) ReorderQuestions(ctx context.Context, questionnaireID int64, order []int64) error {
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return err
	}
	return s.store.ReorderQuestions(ctx, questionnaireID, order)
}

// buildQuestion trims the input and applies the authoring rules. An unknown type is left for
// the store to reject.
func buildQuestion(questionnaireID int64, in QuestionInput) (*models.Question, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return nil, models.NewValidationError("question text is required")
	}
	if in.Type == models.QuestionMultipleChoice {
		in.Options = cleanOptions(in.Options)
		if len(in.Options) == 0 {
			return nil, models.NewValidationError("multiple choice questions need at least one option")
		}
	} else {
		in.Options = nil
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return &models.Question{
		QuestionnaireID: questionnaireID,
		Text:            in.Text,
		Type:            in.Type,
		Options:         in.Options,
		OrderIndex:      in.OrderIndex,
		IsRequired:      in.IsRequired,
	}, nil
}

func cleanOptions(opts []string) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
