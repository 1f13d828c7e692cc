package survey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soaringjerry/satisfacao/internal/models"
)

const (
	MinRating = 1
	MaxRating = 5

	AnswerYes = "Sim"
	AnswerNo  = "Não"
)

// codec validates a raw answer for one question type and converts it into the persisted
// (text, value) pair. check receives a non-blank raw value and returns its normalized form.
type codec struct {
	check  func(q *models.Question, raw string) (string, error)
	encode func(raw string) (text *string, value *int)
}

var codecs = map[models.QuestionType]codec{
	models.QuestionRating: {
		check: func(_ *models.Question, raw string) (string, error) {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || n < MinRating || n > MaxRating {
				return "", models.NewValidationError(fmt.Sprintf("rating must be a whole number from %d to %d", MinRating, MaxRating))
			}
			return strconv.Itoa(n), nil
		},
		encode: func(raw string) (*string, *int) {
			n, _ := strconv.Atoi(raw)
			return models.StringPtr(raw + " estrelas"), models.IntPtr(n)
		},
	},
	models.QuestionYesNo: {
		check: func(_ *models.Question, raw string) (string, error) {
			raw = strings.TrimSpace(raw)
			if raw != AnswerYes && raw != AnswerNo {
				return "", models.NewValidationError(fmt.Sprintf("answer must be %q or %q", AnswerYes, AnswerNo))
			}
			return raw, nil
		},
		encode: func(raw string) (*string, *int) {
			v := 0
			if raw == AnswerYes {
				v = 1
			}
			return models.StringPtr(raw), models.IntPtr(v)
		},
	},
	models.QuestionMultipleChoice: {
		check: func(q *models.Question, raw string) (string, error) {
			raw = strings.TrimSpace(raw)
			for _, opt := range q.Options {
				if opt == raw {
					return raw, nil
				}
			}
			return "", models.NewValidationError("answer must be one of the listed options")
		},
		encode: textOnly,
	},
	models.QuestionText: {
		check: func(_ *models.Question, raw string) (string, error) {
			return strings.TrimSpace(raw), nil
		},
		encode: textOnly,
	},
}

func textOnly(raw string) (*string, *int) {
	return models.StringPtr(raw), nil
}

func codecFor(q *models.Question) (codec, error) {
	c, ok := codecs[q.Type]
	if !ok {
		return codec{}, models.NewConstraintError(fmt.Sprintf("question %d has unsupported type %q", q.ID, q.Type), nil)
	}
	return c, nil
}

// Encode converts a recorded raw answer into the stored answer for q.
func Encode(q *models.Question, raw string) (*models.Answer, error) {
	c, err := codecFor(q)
	if err != nil {
		return nil, err
	}
	text, value := c.encode(raw)
	return &models.Answer{QuestionID: q.ID, AnswerText: text, AnswerValue: value}, nil
}
