package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/soaringjerry/satisfacao/internal/models"
)

// memStore is an in-memory stand-in for the SQLite store covering every service interface.
type memStore struct {
	nextID         int64
	now            time.Time
	users          map[int64]*models.User
	questionnaires map[int64]*models.Questionnaire
	questions      map[int64]*models.Question
	responses      map[int64]*models.Response
	answers        []*models.Answer
	failStats      map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		now:            time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		users:          map[int64]*models.User{},
		questionnaires: map[int64]*models.Questionnaire{},
		questions:      map[int64]*models.Question{},
		responses:      map[int64]*models.Response{},
		failStats:      map[int64]bool{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.NewNotFoundError("user not found")
}

func (s *memStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, models.NewNotFoundError("user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) CreateUser(_ context.Context, u *models.User) (int64, error) {
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return 0, models.NewConstraintError("duplicate username", nil)
		}
	}
	u.ID = s.id()
	cp := *u
	s.users[u.ID] = &cp
	return u.ID, nil
}

func (s *memStore) UpdateUserPassword(_ context.Context, id int64, hash []byte) error {
	u, ok := s.users[id]
	if !ok {
		return models.NewNotFoundError("user not found")
	}
	u.PassHash = hash
	return nil
}

func (s *memStore) CreateQuestionnaire(_ context.Context, q *models.Questionnaire) (int64, error) {
	q.ID = s.id()
	cp := *q
	s.questionnaires[q.ID] = &cp
	return q.ID, nil
}

func (s *memStore) GetQuestionnaire(_ context.Context, id int64) (*models.Questionnaire, error) {
	q, ok := s.questionnaires[id]
	if !ok {
		return nil, models.NewNotFoundError(fmt.Sprintf("questionnaire %d not found", id))
	}
	cp := *q
	return &cp, nil
}

func (s *memStore) ListQuestionnaires(_ context.Context, activeOnly bool) ([]*models.Questionnaire, error) {
	out := []*models.Questionnaire{}
	for _, q := range s.questionnaires {
		if activeOnly && !q.IsActive {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) UpdateQuestionnaire(_ context.Context, q *models.Questionnaire) error {
	if _, ok := s.questionnaires[q.ID]; !ok {
		return models.NewNotFoundError("questionnaire not found")
	}
	cp := *q
	s.questionnaires[q.ID] = &cp
	return nil
}

func (s *memStore) SetQuestionnaireActive(_ context.Context, id int64, active bool) error {
	q, ok := s.questionnaires[id]
	if !ok {
		return models.NewNotFoundError("questionnaire not found")
	}
	q.IsActive = active
	return nil
}

func (s *memStore) DeleteQuestionnaire(_ context.Context, id int64) error {
	if _, ok := s.questionnaires[id]; !ok {
		return models.NewNotFoundError("questionnaire not found")
	}
	delete(s.questionnaires, id)
	return nil
}

func (s *memStore) CreateQuestion(_ context.Context, q *models.Question) (int64, error) {
	if !q.Type.Valid() {
		return 0, models.NewConstraintError("invalid type", nil)
	}
	if _, ok := s.questionnaires[q.QuestionnaireID]; !ok {
		return 0, models.NewConstraintError("foreign key", nil)
	}
	q.ID = s.id()
	cp := *q
	s.questions[q.ID] = &cp
	return q.ID, nil
}

func (s *memStore) CreateQuestions(ctx context.Context, qs []*models.Question) ([]int64, error) {
	for _, q := range qs {
		if !q.Type.Valid() {
			return nil, models.NewConstraintError("invalid type", nil)
		}
	}
	ids := make([]int64, 0, len(qs))
	for _, q := range qs {
		id, err := s.CreateQuestion(ctx, q)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memStore) GetQuestion(_ context.Context, id int64) (*models.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return nil, models.NewNotFoundError(fmt.Sprintf("question %d not found", id))
	}
	cp := *q
	return &cp, nil
}

func (s *memStore) ListQuestions(_ context.Context, questionnaireID int64) ([]*models.Question, error) {
	out := []*models.Question{}
	for _, q := range s.questions {
		if q.QuestionnaireID == questionnaireID {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex == out[j].OrderIndex {
			return out[i].ID < out[j].ID
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (s *memStore) UpdateQuestion(_ context.Context, q *models.Question) error {
	existing, ok := s.questions[q.ID]
	if !ok {
		return models.NewNotFoundError("question not found")
	}
	cp := *q
	cp.QuestionnaireID = existing.QuestionnaireID
	s.questions[q.ID] = &cp
	return nil
}

func (s *memStore) DeleteQuestion(_ context.Context, id int64) error {
	if _, ok := s.questions[id]; !ok {
		return models.NewNotFoundError("question not found")
	}
	delete(s.questions, id)
	return nil
}

func (s *memStore) NextOrderIndex(ctx context.Context, questionnaireID int64) (int, error) {
	qs, _ := s.ListQuestions(ctx, questionnaireID)
	max := 0
	for _, q := range qs {
		if q.OrderIndex > max {
			max = q.OrderIndex
		}
	}
	return max + 1, nil
}

func (s *memStore) ReorderQuestions(_ context.Context, questionnaireID int64, order []int64) error {
	for i, id := range order {
		q, ok := s.questions[id]
		if !ok || q.QuestionnaireID != questionnaireID {
			return models.NewNotFoundError("question not found")
		}
		q.OrderIndex = i + 1
	}
	return nil
}

// addResponse stores a response with its answers; minutesAgo sets completion relative to now.
func (s *memStore) addResponse(questionnaireID int64, name string, age *int, minutesAgo int, answers map[int64]string) *models.Response {
	r := &models.Response{
		ID:              s.id(),
		QuestionnaireID: questionnaireID,
		RespondentName:  name,
		RespondentAge:   age,
		CompletedAt:     s.now.Add(-time.Duration(minutesAgo) * time.Minute),
	}
	s.responses[r.ID] = r
	for qid, text := range answers {
		s.answers = append(s.answers, &models.Answer{ID: s.id(), ResponseID: r.ID, QuestionID: qid, AnswerText: models.StringPtr(text)})
	}
	return r
}

func (s *memStore) ListResponses(_ context.Context, questionnaireID int64) ([]*models.Response, error) {
	out := []*models.Response{}
	for _, r := range s.responses {
		if r.QuestionnaireID == questionnaireID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out, nil
}

func (s *memStore) ListAnswersByQuestionnaire(_ context.Context, questionnaireID int64) ([]*models.Answer, error) {
	out := []*models.Answer{}
	for _, a := range s.answers {
		if r, ok := s.responses[a.ResponseID]; ok && r.QuestionnaireID == questionnaireID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ResponseStatistics(_ context.Context, questionnaireID int64) (*models.ResponseStatistics, error) {
	if s.failStats[questionnaireID] {
		return nil, models.NewStoreError("response statistics", errors.New("disk I/O error"))
	}
	st := &models.ResponseStatistics{}
	sum, n := 0, 0
	for _, r := range s.responses {
		if r.QuestionnaireID != questionnaireID {
			continue
		}
		st.TotalResponses++
		if r.RespondentAge == nil {
			continue
		}
		age := *r.RespondentAge
		if n == 0 || age < st.MinAge {
			st.MinAge = age
		}
		if n == 0 || age > st.MaxAge {
			st.MaxAge = age
		}
		sum += age
		n++
	}
	if n > 0 {
		st.AvgAge = float64(sum) / float64(n)
	}
	return st, nil
}

func (s *memStore) QuestionStatistics(_ context.Context, questionID int64) ([]models.AnswerCount, error) {
	type key struct {
		text  string
		value int
		hasV  bool
	}
	counts := map[key]int{}
	var order []key
	for _, a := range s.answers {
		if a.QuestionID != questionID {
			continue
		}
		k := key{text: a.Text()}
		if a.AnswerValue != nil {
			k.value, k.hasV = *a.AnswerValue, true
		}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	out := []models.AnswerCount{}
	for _, k := range order {
		c := models.AnswerCount{AnswerText: models.StringPtr(k.text), Count: counts[k]}
		if k.hasV {
			c.AnswerValue = models.IntPtr(k.value)
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}
