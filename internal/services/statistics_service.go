package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/soaringjerry/satisfacao/internal/logger"
	"github.com/soaringjerry/satisfacao/internal/models"
)

type StatisticsStore interface {
	GetQuestionnaire(ctx context.Context, id int64) (*models.Questionnaire, error)
	ListQuestionnaires(ctx context.Context, activeOnly bool) ([]*models.Questionnaire, error)
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	ListQuestions(ctx context.Context, questionnaireID int64) ([]*models.Question, error)
	ListResponses(ctx context.Context, questionnaireID int64) ([]*models.Response, error)
	ListAnswersByQuestionnaire(ctx context.Context, questionnaireID int64) ([]*models.Answer, error)
	ResponseStatistics(ctx context.Context, questionnaireID int64) (*models.ResponseStatistics, error)
	QuestionStatistics(ctx context.Context, questionID int64) ([]models.AnswerCount, error)
}

// StatisticsService holds the read-only aggregations and exports. Nothing here writes.
type StatisticsService struct {
	store StatisticsStore
	log   *zap.Logger
}

func NewStatisticsService(store StatisticsStore, log *zap.Logger) *StatisticsService {
	return &StatisticsService{store: store, log: logger.Or(log).Named("statistics")}
}

func (s *StatisticsService) ResponseStatistics(ctx context.Context, questionnaireID int64) (*models.ResponseStatistics, error) {
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return nil, err
	}
	return s.store.ResponseStatistics(ctx, questionnaireID)
}

func (s *StatisticsService) QuestionStatistics(ctx context.Context, questionID int64) ([]models.AnswerCount, error) {
	if _, err := s.store.GetQuestion(ctx, questionID); err != nil {
		return nil, err
	}
	return s.store.QuestionStatistics(ctx, questionID)
}

// QuestionnaireReport gathers overall statistics, per-question tallies and responses per day.
func (s *StatisticsService) QuestionnaireReport(ctx context.Context, questionnaireID int64) (*QuestionnaireReport, error) {
	qn, err := s.store.GetQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.ResponseStatistics(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	reports := make([]QuestionReport, 0, len(questions))
	for _, q := range questions {
		counts, err := s.store.QuestionStatistics(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		reports = append(reports, buildQuestionReport(q, counts))
	}
	responses, err := s.store.ListResponses(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	return &QuestionnaireReport{
		Questionnaire: qn,
		Statistics:    stats,
		Questions:     reports,
		Timeseries:    buildTimeseries(responses),
	}, nil
}

// Dashboard lists every questionnaire with its response count. A failing count is logged and
// shown as zero so one broken questionnaire does not hide the others.
func (s *StatisticsService) Dashboard(ctx context.Context) ([]DashboardEntry, error) {
	qns, err := s.store.ListQuestionnaires(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]DashboardEntry, 0, len(qns))
	for _, qn := range qns {
		entry := DashboardEntry{Questionnaire: qn}
		if st, err := s.store.ResponseStatistics(ctx, qn.ID); err != nil {
			s.log.Error("load questionnaire statistics", zap.Int64("questionnaire_id", qn.ID), zap.Error(err))
		} else {
			entry.TotalResponses = st.TotalResponses
		}
		if qs, err := s.store.ListQuestions(ctx, qn.ID); err != nil {
			s.log.Error("load questionnaire questions", zap.Int64("questionnaire_id", qn.ID), zap.Error(err))
		} else {
			entry.QuestionCount = len(qs)
		}
		out = append(out, entry)
	}
	return out, nil
}

// ExportCSV renders the wide export: one row per response, newest first, one column per
// question in presentation order holding the stored answer text.
func (s *StatisticsService) ExportCSV(ctx context.Context, questionnaireID int64) (string, error) {
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return "", err
	}
	questions, err := s.store.ListQuestions(ctx, questionnaireID)
	if err != nil {
		return "", err
	}
	responses, err := s.store.ListResponses(ctx, questionnaireID)
	if err != nil {
		return "", err
	}
	answers, err := s.store.ListAnswersByQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return "", err
	}

	byResponse := make(map[int64]map[int64]*models.Answer, len(responses))
	for _, a := range answers {
		m := byResponse[a.ResponseID]
		if m == nil {
			m = map[int64]*models.Answer{}
			byResponse[a.ResponseID] = m
		}
		m[a.QuestionID] = a
	}

	headers := make([]string, 0, len(questions))
	for _, q := range questions {
		headers = append(headers, q.Text)
	}
	rows := make([]WideRow, 0, len(responses))
	for _, r := range responses {
		cells := make([]string, len(questions))
		for i, q := range questions {
			cells[i] = byResponse[r.ID][q.ID].Text()
		}
		rows = append(rows, WideRow{
			ResponseID:  r.ID,
			Name:        r.RespondentName,
			Age:         r.RespondentAge,
			CompletedAt: r.CompletedAt,
			Cells:       cells,
		})
	}
	s.log.Info("csv export", zap.Int64("questionnaire_id", questionnaireID), zap.Int("rows", len(rows)))
	return string(ExportWideCSV(headers, rows)), nil
}

// ExportAnswersCSV renders the long export, one row per stored answer.
func (s *StatisticsService) ExportAnswersCSV(ctx context.Context, questionnaireID int64) (string, error) {
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return "", err
	}
	responses, err := s.store.ListResponses(ctx, questionnaireID)
	if err != nil {
		return "", err
	}
	answers, err := s.store.ListAnswersByQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return "", err
	}
	completed := make(map[int64]*models.Response, len(responses))
	for _, r := range responses {
		completed[r.ID] = r
	}
	rows := make([]LongRow, 0, len(answers))
	for _, a := range answers {
		r, ok := completed[a.ResponseID]
		if !ok {
			return "", models.NewStoreError("export answers", fmt.Errorf("answer %d references unknown response %d", a.ID, a.ResponseID))
		}
		rows = append(rows, LongRow{
			ResponseID:  a.ResponseID,
			QuestionID:  a.QuestionID,
			AnswerText:  a.AnswerText,
			AnswerValue: a.AnswerValue,
			CompletedAt: r.CompletedAt,
		})
	}
	b, err := ExportLongCSV(rows)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func buildQuestionReport(q *models.Question, counts []models.AnswerCount) QuestionReport {
	rep := QuestionReport{Question: q, Tallies: make([]Tally, 0, len(counts))}
	sum, rated := 0, 0
	for _, c := range counts {
		rep.Tallies = append(rep.Tallies, Tally{
			Label:       tallyLabel(c),
			AnswerText:  c.AnswerText,
			AnswerValue: c.AnswerValue,
			Count:       c.Count,
		})
		rep.Answered += c.Count
		if q.Type == models.QuestionRating && c.AnswerValue != nil {
			sum += *c.AnswerValue * c.Count
			rated += c.Count
		}
	}
	if rated > 0 {
		avg := float64(sum) / float64(rated)
		rep.AverageRating = &avg
	}
	return rep
}

func tallyLabel(c models.AnswerCount) string {
	if c.AnswerText != nil && *c.AnswerText != "" {
		return *c.AnswerText
	}
	if c.AnswerValue != nil {
		return fmt.Sprintf("Valor %d", *c.AnswerValue)
	}
	return ""
}

func buildTimeseries(responses []*models.Response) []DailyCount {
	counts := map[string]int{}
	for _, r := range responses {
		counts[r.CompletedAt.UTC().Format("2006-01-02")]++
	}
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]DailyCount, 0, len(days))
	for _, d := range days {
		out = append(out, DailyCount{Date: d, Count: counts[d]})
	}
	return out
}
