package services

import (
	"context"
	"testing"

	"github.com/soaringjerry/satisfacao/internal/models"
)

func TestCreateQuestionnaireRequiresTitle(t *testing.T) {
	svc := NewQuestionnaireService(newMemStore(), nil)
	ctx := context.Background()
	if _, err := svc.CreateQuestionnaire(ctx, "   ", "desc"); !models.IsCode(err, models.ErrorValidation) {
		t.Fatalf("expected validation error for blank title, got %v", err)
	}
	id, err := svc.CreateQuestionnaire(ctx, "  Satisfação  ", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	q, err := svc.GetQuestionnaire(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Title != "Satisfação" || !q.IsActive {
		t.Fatalf("unexpected questionnaire %+v", q)
	}
}

func TestCreateQuestionValidation(t *testing.T) {
	store := newMemStore()
	svc := NewQuestionnaireService(store, nil)
	ctx := context.Background()
	qid, _ := svc.CreateQuestionnaire(ctx, "Q", "")

	if _, err := svc.CreateQuestion(ctx, qid, QuestionInput{Text: " ", Type: models.QuestionText}); !models.IsCode(err, models.ErrorValidation) {
		t.Fatalf("expected validation error for empty text, got %v", err)
	}
	if _, err := svc.CreateQuestion(ctx, qid, QuestionInput{Text: "Escolha", Type: models.QuestionMultipleChoice, Options: []string{" ", ""}}); !models.IsCode(err, models.ErrorValidation) {
		t.Fatalf("expected validation error for blank options, got %v", err)
	}
	if _, err := svc.CreateQuestion(ctx, qid, QuestionInput{Text: "Nota", Type: "slider"}); !models.IsCode(err, models.ErrorConstraint) {
		t.Fatalf("expected constraint violation for unknown type, got %v", err)
	}
	if _, err := svc.CreateQuestion(ctx, 999, QuestionInput{Text: "Nota", Type: models.QuestionRating}); !models.IsCode(err, models.ErrorNotFound) {
		t.Fatalf("expected not found for unknown questionnaire, got %v", err)
	}

	id, err := svc.CreateQuestion(ctx, qid, QuestionInput{Text: "Escolha", Type: models.QuestionMultipleChoice, Options: []string{"A", " ", "B, \"c\""}, OrderIndex: 1})
	if err != nil {
		t.Fatalf("create mc: %v", err)
	}
	got, _ := svc.GetQuestion(ctx, id)
	if len(got.Options) != 2 || got.Options[0] != "A" || got.Options[1] != "B, \"c\"" {
		t.Fatalf("unexpected options %#v", got.Options)
	}

	id, err = svc.CreateQuestion(ctx, qid, QuestionInput{Text: "Nota", Type: models.QuestionRating, Options: []string{"ignored"}})
	if err != nil {
		t.Fatalf("create rating: %v", err)
	}
	if got, _ := svc.GetQuestion(ctx, id); got.Options != nil {
		t.Fatalf("options must be dropped for rating, got %#v", got.Options)
	}
}

func TestAppendQuestionUsesNextIndex(t *testing.T) {
	svc := NewQuestionnaireService(newMemStore(), nil)
	ctx := context.Background()
	qid, _ := svc.CreateQuestionnaire(ctx, "Q", "")
	if _, err := svc.CreateQuestion(ctx, qid, QuestionInput{Text: "Um", Type: models.QuestionText, OrderIndex: 4}); err != nil {
		t.Fatalf("create: %v", err)
	}
	id, err := svc.AppendQuestion(ctx, qid, QuestionInput{Text: "Dois", Type: models.QuestionYesNo, OrderIndex: 1})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	q, _ := svc.GetQuestion(ctx, id)
	if q.OrderIndex != 5 {
		t.Fatalf("expected order index 5, got %d", q.OrderIndex)
	}
	qs, _ := svc.ListQuestions(ctx, qid)
	if len(qs) != 2 || qs[1].ID != id {
		t.Fatalf("appended question must come last: %+v", qs)
	}
}

func TestCreateQuestionsValidatesAllFirst(t *testing.T) {
	store := newMemStore()
	svc := NewQuestionnaireService(store, nil)
	ctx := context.Background()
	qid, _ := svc.CreateQuestionnaire(ctx, "Q", "")
	_, err := svc.CreateQuestions(ctx, qid, []QuestionInput{
		{Text: "Ok", Type: models.QuestionText},
		{Text: "", Type: models.QuestionText},
	})
	if !models.IsCode(err, models.ErrorValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.questions) != 0 {
		t.Fatalf("no question may be stored when one input is invalid")
	}
}

func TestUpdateAndVisibility(t *testing.T) {
	svc := NewQuestionnaireService(newMemStore(), nil)
	ctx := context.Background()
	qid, _ := svc.CreateQuestionnaire(ctx, "Antigo", "")
	if err := svc.UpdateQuestionnaire(ctx, qid, "Novo", "descrição"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.SetActive(ctx, qid, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	active, _ := svc.ListQuestionnaires(ctx, true)
	if len(active) != 0 {
		t.Fatalf("inactive questionnaire listed as active")
	}
	all, _ := svc.ListQuestionnaires(ctx, false)
	if len(all) != 1 || all[0].Title != "Novo" || all[0].Description != "descrição" {
		t.Fatalf("unexpected questionnaires %+v", all)
	}
	if err := svc.UpdateQuestionnaire(ctx, 404, "X", ""); !models.IsCode(err, models.ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSeedExamples(t *testing.T) {
	store := newMemStore()
	svc := NewQuestionnaireService(store, nil)
	ctx := context.Background()
	created, err := svc.SeedExamples(ctx)
	if err != nil || !created {
		t.Fatalf("seed: created=%v err=%v", created, err)
	}
	qns, _ := svc.ListQuestionnaires(ctx, true)
	if len(qns) != 2 {
		t.Fatalf("expected two example questionnaires, got %d", len(qns))
	}
	for _, qn := range qns {
		qs, _ := svc.ListQuestions(ctx, qn.ID)
		last := qs[len(qs)-1]
		if last.Type != models.QuestionText || last.IsRequired {
			t.Fatalf("last example question must be optional text: %+v", last)
		}
		if !qs[0].IsRequired || qs[0].OrderIndex != 1 {
			t.Fatalf("first example question must be required at index 1: %+v", qs[0])
		}
	}
	created, err = svc.SeedExamples(ctx)
	if err != nil || created {
		t.Fatalf("second seed must be a no-op: created=%v err=%v", created, err)
	}
}
