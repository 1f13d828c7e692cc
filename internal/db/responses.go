package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soaringjerry/satisfacao/internal/models"
	"github.com/soaringjerry/satisfacao/internal/monitoring"
)

const responseColumns = `id, questionnaire_id, respondent_name, respondent_age, completed_at`

func scanResponse(row interface{ Scan(...any) error }) (*models.Response, error) {
	var r models.Response
	var name sql.NullString
	var age sql.NullInt64
	var completed string
	if err := row.Scan(&r.ID, &r.QuestionnaireID, &name, &age, &completed); err != nil {
		return nil, err
	}
	r.RespondentName = name.String
	r.RespondentAge = nullIntPtr(age)
	r.CompletedAt = parseTime(completed)
	return &r, nil
}

const answerColumns = `id, response_id, question_id, answer_text, answer_value, created_at`

func scanAnswer(row interface{ Scan(...any) error }) (*models.Answer, error) {
	var a models.Answer
	var text sql.NullString
	var value sql.NullInt64
	var created string
	if err := row.Scan(&a.ID, &a.ResponseID, &a.QuestionID, &text, &value, &created); err != nil {
		return nil, err
	}
	a.AnswerText = nullStringPtr(text)
	a.AnswerValue = nullIntPtr(value)
	a.CreatedAt = parseTime(created)
	return &a, nil
}

func (s *SQLiteStore) insertResponse(ctx context.Context, ex execer, r *models.Response) error {
	if r == nil {
		return models.NewConstraintError("create response: nil response", nil)
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = s.now()
	}
	res, err := ex.ExecContext(ctx, `INSERT INTO responses (questionnaire_id, respondent_name, respondent_age, completed_at)
      VALUES (?, ?, ?, ?)`, r.QuestionnaireID, toNullString(r.RespondentName), ptrToNullInt(r.RespondentAge), formatTime(r.CompletedAt))
	if err != nil {
		return s.classify("create response", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return s.classify("create response: last id", err)
	}
	r.ID = id
	return nil
}

func (s *SQLiteStore) insertAnswer(ctx context.Context, ex execer, a *models.Answer) error {
	if a == nil {
		return models.NewConstraintError("create answer: nil answer", nil)
	}
	created := s.now()
	res, err := ex.ExecContext(ctx, `INSERT INTO response_answers (response_id, question_id, answer_text, answer_value, created_at)
      VALUES (?, ?, ?, ?, ?)`, a.ResponseID, a.QuestionID, ptrToNullString(a.AnswerText), ptrToNullInt(a.AnswerValue), formatTime(created))
	if err != nil {
		return s.classify("create answer", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return s.classify("create answer: last id", err)
	}
	a.ID, a.CreatedAt = id, created
	return nil
}

// CreateResponse stores the response header only. CompletedAt defaults to the store clock.
func (s *SQLiteStore) CreateResponse(ctx context.Context, r *models.Response) (id int64, err error) {
	defer monitoring.ObserveStore("create_response", time.Now(), &err)
	if err = s.insertResponse(ctx, s.db, r); err != nil {
		return 0, err
	}
	return r.ID, nil
}

func (s *SQLiteStore) CreateAnswer(ctx context.Context, a *models.Answer) (id int64, err error) {
	defer monitoring.ObserveStore("create_answer", time.Now(), &err)
	if err = s.insertAnswer(ctx, s.db, a); err != nil {
		return 0, err
	}
	return a.ID, nil
}

// CommitResponse persists a response together with its answers atomically. Each answer's
// ResponseID is overwritten with the new response id.
func (s *SQLiteStore) CommitResponse(ctx context.Context, r *models.Response, answers []*models.Answer) (id int64, err error) {
	defer monitoring.ObserveStore("commit_response", time.Now(), &err)
	err = s.withTx(ctx, "commit response", func(tx *sql.Tx) error {
		if err := s.insertResponse(ctx, tx, r); err != nil {
			return err
		}
		for _, a := range answers {
			if a == nil {
				continue
			}
			a.ResponseID = r.ID
			if err := s.insertAnswer(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if r != nil {
			r.ID = 0
		}
		for _, a := range answers {
			if a != nil {
				a.ID, a.ResponseID = 0, 0
			}
		}
		return 0, err
	}
	return r.ID, nil
}

func (s *SQLiteStore) GetResponse(ctx context.Context, id int64) (r *models.Response, err error) {
	defer monitoring.ObserveStore("get_response", time.Now(), &err)
	r, err = scanResponse(s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(fmt.Sprintf("response %d not found", id))
	}
	if err != nil {
		return nil, s.classify("get response", err)
	}
	return r, nil
}

// ListResponses returns the responses of a questionnaire, most recently completed first.
func (s *SQLiteStore) ListResponses(ctx context.Context, questionnaireID int64) (out []*models.Response, err error) {
	defer monitoring.ObserveStore("list_responses", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `SELECT `+responseColumns+` FROM responses
      WHERE questionnaire_id = ? ORDER BY completed_at DESC, id DESC`, questionnaireID)
	if err != nil {
		return nil, s.classify("list responses", err)
	}
	defer s.closeRows("list responses", rows)
	out = []*models.Response{}
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, s.classify("list responses: scan", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("list responses: rows", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, responseID int64) (out []*models.Answer, err error) {
	defer monitoring.ObserveStore("list_answers", time.Now(), &err)
	return s.queryAnswers(ctx, "list answers", `SELECT `+answerColumns+` FROM response_answers
      WHERE response_id = ? ORDER BY id ASC`, responseID)
}

// ListAnswersByQuestionnaire returns every answer given to the questionnaire, grouped by
// response in the same order as ListResponses.
func (s *SQLiteStore) ListAnswersByQuestionnaire(ctx context.Context, questionnaireID int64) (out []*models.Answer, err error) {
	defer monitoring.ObserveStore("list_answers_by_questionnaire", time.Now(), &err)
	return s.queryAnswers(ctx, "list answers by questionnaire", `SELECT a.id, a.response_id, a.question_id, a.answer_text, a.answer_value, a.created_at
      FROM response_answers a JOIN responses r ON r.id = a.response_id
      WHERE r.questionnaire_id = ?
      ORDER BY r.completed_at DESC, r.id DESC, a.id ASC`, questionnaireID)
}

func (s *SQLiteStore) queryAnswers(ctx context.Context, op, query string, args ...any) ([]*models.Answer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.classify(op, err)
	}
	defer s.closeRows(op, rows)
	out := []*models.Answer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, s.classify(op+": scan", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(op+": rows", err)
	}
	return out, nil
}

// DeleteResponse removes a response and its answers.
func (s *SQLiteStore) DeleteResponse(ctx context.Context, id int64) (err error) {
	defer monitoring.ObserveStore("delete_response", time.Now(), &err)
	res, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE id = ?`, id)
	if err != nil {
		return s.classify("delete response", err)
	}
	if rowsAffected(res) == 0 {
		return models.NewNotFoundError(fmt.Sprintf("response %d not found", id))
	}
	return nil
}

// --- Statistics ---

// ResponseStatistics aggregates the responses of one questionnaire. Ages are taken only from
// responses that recorded one; with no ages the age fields are zero.
func (s *SQLiteStore) ResponseStatistics(ctx context.Context, questionnaireID int64) (st *models.ResponseStatistics, err error) {
	defer monitoring.ObserveStore("response_statistics", time.Now(), &err)
	var total int
	var avg sql.NullFloat64
	var minAge, maxAge sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), AVG(respondent_age), MIN(respondent_age), MAX(respondent_age)
      FROM responses WHERE questionnaire_id = ?`, questionnaireID).Scan(&total, &avg, &minAge, &maxAge)
	if err != nil {
		return nil, s.classify("response statistics", err)
	}
	return &models.ResponseStatistics{
		TotalResponses: total,
		AvgAge:         avg.Float64,
		MinAge:         int(minAge.Int64),
		MaxAge:         int(maxAge.Int64),
	}, nil
}

// QuestionStatistics counts answers to one question grouped by identical (text, value) pairs,
// most frequent first.
func (s *SQLiteStore) QuestionStatistics(ctx context.Context, questionID int64) (out []models.AnswerCount, err error) {
	defer monitoring.ObserveStore("question_statistics", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `SELECT answer_text, answer_value, COUNT(*) AS n
      FROM response_answers WHERE question_id = ?
      GROUP BY answer_text, answer_value
      ORDER BY n DESC, answer_value ASC, answer_text ASC`, questionID)
	if err != nil {
		return nil, s.classify("question statistics", err)
	}
	defer s.closeRows("question statistics", rows)
	out = []models.AnswerCount{}
	for rows.Next() {
		var text sql.NullString
		var value sql.NullInt64
		var n int
		if err := rows.Scan(&text, &value, &n); err != nil {
			return nil, s.classify("question statistics: scan", err)
		}
		out = append(out, models.AnswerCount{AnswerText: nullStringPtr(text), AnswerValue: nullIntPtr(value), Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("question statistics: rows", err)
	}
	return out, nil
}
