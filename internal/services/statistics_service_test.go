package services

import (
	"context"
	"encoding/csv"
	"strconv"
	"strings"
	"testing"

	"github.com/soaringjerry/satisfacao/internal/models"
)

func seedStats(t *testing.T) (*memStore, int64, []*models.Question) {
	t.Helper()
	store := newMemStore()
	ctx := context.Background()
	qid, _ := store.CreateQuestionnaire(ctx, &models.Questionnaire{Title: "Q", IsActive: true})
	var qs []*models.Question
	for i, typ := range []models.QuestionType{models.QuestionRating, models.QuestionText} {
		q := &models.Question{QuestionnaireID: qid, Text: "Pergunta " + string(typ), Type: typ, OrderIndex: i + 1}
		if _, err := store.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("create question: %v", err)
		}
		qs = append(qs, q)
	}
	return store, qid, qs
}

func TestExportCSVSingleResponse(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	single, _ := store.CreateQuestionnaire(ctx, &models.Questionnaire{Title: "Uma", IsActive: true})
	q := &models.Question{QuestionnaireID: single, Text: "Única", Type: models.QuestionText}
	if _, err := store.CreateQuestion(ctx, q); err != nil {
		t.Fatalf("create question: %v", err)
	}
	store.addResponse(single, "Ana", models.IntPtr(72), 0, map[int64]string{q.ID: "Muito bom"})

	svc := NewStatisticsService(store, nil)
	out, err := svc.ExportCSV(ctx, single)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", out)
	}
	if lines[0] != `ID,Nome,Idade,Data Resposta,"Única"` {
		t.Fatalf("bad header %q", lines[0])
	}
	recs, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if recs[1][4] != "Muito bom" || recs[1][1] != "Ana" || recs[1][2] != "72" {
		t.Fatalf("unexpected row %v", recs[1])
	}
	if recs[1][3] != "2024-05-01 09:00:00" {
		t.Fatalf("unexpected date %q", recs[1][3])
	}
}

func TestExportCSVOrderingAndEscaping(t *testing.T) {
	store, qid, qs := seedStats(t)
	older := store.addResponse(qid, "", nil, 30, map[int64]string{qs[0].ID: "3 estrelas"})
	newer := store.addResponse(qid, `Zé "da" Silva`, models.IntPtr(80), 5, map[int64]string{qs[1].ID: "bom, \"muito\" bom"})

	svc := NewStatisticsService(store, nil)
	out, err := svc.ExportCSV(context.Background(), qid)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	recs, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("export must be valid CSV: %v\n%s", err, out)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[1][0] != strconv.FormatInt(newer.ID, 10) || recs[2][0] != strconv.FormatInt(older.ID, 10) {
		t.Fatalf("rows must be newest first: %v", recs)
	}
	if recs[1][1] != `Zé "da" Silva` || recs[1][5] != `bom, "muito" bom` || recs[1][4] != "" {
		t.Fatalf("escaped fields lost: %v", recs[1])
	}
	if recs[2][2] != "" || recs[2][4] != "3 estrelas" {
		t.Fatalf("unexpected older row %v", recs[2])
	}
	if !strings.Contains(out, `"Zé ""da"" Silva"`) {
		t.Fatalf("embedded quotes must be doubled: %s", out)
	}
}

func TestExportAnswersCSV(t *testing.T) {
	store, qid, qs := seedStats(t)
	store.addResponse(qid, "Ana", nil, 0, map[int64]string{qs[1].ID: "ok"})
	svc := NewStatisticsService(store, nil)
	out, err := svc.ExportAnswersCSV(context.Background(), qid)
	if err != nil {
		t.Fatalf("export long: %v", err)
	}
	recs, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if strings.Join(recs[0], ",") != "response_id,question_id,answer_text,answer_value,completed_at" {
		t.Fatalf("bad header %v", recs[0])
	}
	if len(recs) != 2 || recs[1][2] != "ok" || recs[1][3] != "" {
		t.Fatalf("unexpected rows %v", recs)
	}
}

func TestStatisticsNotFound(t *testing.T) {
	svc := NewStatisticsService(newMemStore(), nil)
	ctx := context.Background()
	if _, err := svc.ResponseStatistics(ctx, 77); !models.IsCode(err, models.ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.QuestionStatistics(ctx, 77); !models.IsCode(err, models.ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.ExportCSV(ctx, 77); !models.IsCode(err, models.ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResponseStatisticsEmpty(t *testing.T) {
	store, qid, _ := seedStats(t)
	svc := NewStatisticsService(store, nil)
	st, err := svc.ResponseStatistics(context.Background(), qid)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if *st != (models.ResponseStatistics{}) {
		t.Fatalf("expected zeros, got %+v", st)
	}
}

func TestQuestionnaireReport(t *testing.T) {
	store, qid, qs := seedStats(t)
	rating := qs[0]
	for _, v := range []int{5, 5, 2} {
		r := store.addResponse(qid, "", models.IntPtr(65), 0, nil)
		store.answers = append(store.answers, &models.Answer{ResponseID: r.ID, QuestionID: rating.ID,
			AnswerText: models.StringPtr(strconv.Itoa(v) + " estrelas"), AnswerValue: models.IntPtr(v)})
	}
	svc := NewStatisticsService(store, nil)
	rep, err := svc.QuestionnaireReport(context.Background(), qid)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Statistics.TotalResponses != 3 || rep.Statistics.AvgAge != 65 {
		t.Fatalf("unexpected statistics %+v", rep.Statistics)
	}
	if len(rep.Questions) != 2 {
		t.Fatalf("expected a report per question, got %d", len(rep.Questions))
	}
	rr := rep.Questions[0]
	if rr.Answered != 3 || rr.AverageRating == nil || *rr.AverageRating != 4 {
		t.Fatalf("unexpected rating report %+v", rr)
	}
	if rr.Tallies[0].Label != "5 estrelas" || rr.Tallies[0].Count != 2 {
		t.Fatalf("unexpected tallies %+v", rr.Tallies)
	}
	if rep.Questions[1].AverageRating != nil || rep.Questions[1].Answered != 0 {
		t.Fatalf("text question must have no answers or average: %+v", rep.Questions[1])
	}
	if len(rep.Timeseries) != 1 || rep.Timeseries[0].Date != "2024-05-01" || rep.Timeseries[0].Count != 3 {
		t.Fatalf("unexpected timeseries %+v", rep.Timeseries)
	}
}

func TestDashboardDegradesOnStatisticsFailure(t *testing.T) {
	store, qid, _ := seedStats(t)
	other, _ := store.CreateQuestionnaire(context.Background(), &models.Questionnaire{Title: "Outro", IsActive: false})
	store.addResponse(other, "", nil, 0, nil)
	store.failStats[qid] = true

	svc := NewStatisticsService(store, nil)
	entries, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected both questionnaires, got %d", len(entries))
	}
	for _, e := range entries {
		switch e.Questionnaire.ID {
		case qid:
			if e.TotalResponses != 0 || e.QuestionCount != 2 {
				t.Fatalf("failing questionnaire must show zero responses: %+v", e)
			}
		case other:
			if e.TotalResponses != 1 {
				t.Fatalf("expected one response, got %+v", e)
			}
		}
	}
}

func TestTallyLabelFallsBackToValue(t *testing.T) {
	if got := tallyLabel(models.AnswerCount{AnswerValue: models.IntPtr(3)}); got != "Valor 3" {
		t.Fatalf("label = %q", got)
	}
}
