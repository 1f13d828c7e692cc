package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/soaringjerry/satisfacao/internal/models"
)

type exampleQuestionnaire struct {
	title       string
	description string
	questions   []QuestionInput
	// questions past this position are optional
	required int
}

var exampleQuestionnaires = []exampleQuestionnaire{
	{
		title:       "Pesquisa de Satisfação - Serviços para Idosos",
		description: "Avalie a qualidade dos serviços oferecidos para a terceira idade em nossa comunidade",
		required:    6,
		questions: []QuestionInput{
			{Text: "Como você avalia o atendimento que recebeu?", Type: models.QuestionRating},
			{Text: "Você recomendaria nossos serviços para outros idosos?", Type: models.QuestionYesNo},
			{Text: "Qual aspecto do atendimento você considera mais importante?", Type: models.QuestionMultipleChoice, Options: []string{
				"Rapidez no atendimento",
				"Gentileza dos funcionários",
				"Clareza nas informações",
				"Ambiente acolhedor",
				"Facilidade de acesso",
			}},
			{Text: "Como você avalia a facilidade de usar nossos serviços?", Type: models.QuestionRating},
			{Text: "Os funcionários foram atenciosos e pacientes?", Type: models.QuestionYesNo},
			{Text: "Que tipo de melhorias você gostaria de ver?", Type: models.QuestionMultipleChoice, Options: []string{
				"Mais funcionários",
				"Horários mais flexíveis",
				"Melhor sinalização",
				"Cadeiras mais confortáveis",
				"Informações mais claras",
			}},
			{Text: "Deixe um comentário ou sugestão (opcional):", Type: models.QuestionText},
		},
	},
	{
		title:       "Avaliação de Atividades Sociais",
		description: "Sua opinião sobre as atividades sociais oferecidas para idosos",
		required:    5,
		questions: []QuestionInput{
			{Text: "Você participa regularmente das atividades sociais oferecidas?", Type: models.QuestionYesNo},
			{Text: "Como você avalia a variedade de atividades disponíveis?", Type: models.QuestionRating},
			{Text: "Qual tipo de atividade você mais gosta?", Type: models.QuestionMultipleChoice, Options: []string{
				"Exercícios físicos",
				"Jogos e recreação",
				"Palestras educativas",
				"Atividades artísticas",
				"Eventos sociais",
			}},
			{Text: "Os horários das atividades são convenientes para você?", Type: models.QuestionYesNo},
			{Text: "Como você avalia a organização das atividades?", Type: models.QuestionRating},
			{Text: "Que novas atividades você gostaria que fossem oferecidas?", Type: models.QuestionText},
		},
	},
}

// SeedExamples creates the example questionnaires on an empty database. It reports whether
// anything was created.
func (s *QuestionnaireService) SeedExamples(ctx context.Context) (bool, error) {
	existing, err := s.store.ListQuestionnaires(ctx, false)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		s.log.Debug("seed skipped; questionnaires already exist", zap.Int("count", len(existing)))
		return false, nil
	}
	for _, ex := range exampleQuestionnaires {
		id, err := s.CreateQuestionnaire(ctx, ex.title, ex.description)
		if err != nil {
			return false, err
		}
		inputs := make([]QuestionInput, len(ex.questions))
		for i, q := range ex.questions {
			q.OrderIndex = i + 1
			q.IsRequired = i < ex.required
			inputs[i] = q
		}
		if _, err := s.CreateQuestions(ctx, id, inputs); err != nil {
			return false, err
		}
	}
	s.log.Info("example questionnaires created", zap.Int("count", len(exampleQuestionnaires)))
	return true, nil
}
