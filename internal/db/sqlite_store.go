package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/soaringjerry/satisfacao/internal/config"
	"github.com/soaringjerry/satisfacao/internal/logger"
	"github.com/soaringjerry/satisfacao/internal/models"
	"github.com/soaringjerry/satisfacao/internal/monitoring"
)

// Bootstrap credential created on first initialization. It exists so a fresh device can be
// administered at all; any real deployment must change it immediately.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

// fixed width keeps lexical order equal to chronological order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time

	// bootstrapCost > 0 makes Open provision the default administrator.
	bootstrapCost int
	adminCreated  bool
}

type Option func(*SQLiteStore)

func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStore) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// WithDefaultAdmin makes Open create the bootstrap administrator on a database that lacks one.
func WithDefaultAdmin(bcryptCost int) Option {
	return func(s *SQLiteStore) {
		if bcryptCost <= 0 {
			bcryptCost = bcrypt.DefaultCost
		}
		s.bootstrapCost = bcryptCost
	}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (creating if needed) the SQLite database at cfg.Path and migrates it.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d", filepath.ToSlash(cfg.Path), busy.Milliseconds())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer on one device; a single connection also keeps pragmas in effect
	sqlDB.SetMaxOpenConns(1)

	store, err := NewSQLiteStore(sqlDB, opts...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := RunMigrations(ctx, sqlDB, cfg.MigrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if store.bootstrapCost > 0 {
		created, err := store.EnsureDefaultAdmin(ctx, store.bootstrapCost)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
		store.adminCreated = created
	}
	return store, nil
}

func NewSQLiteStore(db *sql.DB, opts ...Option) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	s := &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Or(s.log).Named("store")
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreatedDefaultAdmin reports whether Open provisioned the bootstrap administrator.
func (s *SQLiteStore) CreatedDefaultAdmin() bool { return s.adminCreated }

// DB exposes the handle for migrations and tests.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// classify maps driver errors onto the models taxonomy. Errors that already carry a code
// pass through unchanged.
func (s *SQLiteStore) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsError(err); ok {
		return err
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		s.log.Debug("constraint violation", zap.String("op", op), zap.Error(err))
		return models.NewConstraintError(op, err)
	}
	s.log.Error("sqlite store", zap.String("op", op), zap.Error(err))
	return models.NewStoreError(op, err)
}

func (s *SQLiteStore) closeRows(op string, rows *sql.Rows) {
	if cerr := rows.Close(); cerr != nil {
		s.log.Warn("rows close", zap.String("op", op), zap.Error(cerr))
	}
}

// withTx runs fn inside one transaction; any error from fn rolls everything back.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.classify(op+": begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				s.log.Warn("rollback", zap.String("op", op), zap.Error(rerr))
			}
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = s.classify(op+": commit", cerr)
		}
	}()
	return fn(tx)
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) time.Time {
	if t, err := time.Parse(timeLayout, v); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func ptrToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrToNullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func encodeOptions(opts []string) (sql.NullString, error) {
	if opts == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeOptions(ns sql.NullString) ([]string, error) {
	if !ns.Valid {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// --- Users ---

const userColumns = `id, username, password, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var pass, role, created string
	if err := row.Scan(&u.ID, &u.Username, &pass, &role, &created); err != nil {
		return nil, err
	}
	u.PassHash = []byte(pass)
	u.Role = models.Role(role)
	u.CreatedAt = parseTime(created)
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) (id int64, err error) {
	defer monitoring.ObserveStore("create_user", time.Now(), &err)
	if u == nil {
		return 0, models.NewConstraintError("create user: nil user", nil)
	}
	if !u.Role.Valid() {
		return 0, models.NewConstraintError(fmt.Sprintf("create user: invalid role %q", u.Role), nil)
	}
	if strings.TrimSpace(u.Username) == "" || len(u.PassHash) == 0 {
		return 0, models.NewConstraintError("create user: username and password required", nil)
	}
	created := s.now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (username, password, role, created_at) VALUES (?, ?, ?, ?)`,
		u.Username, string(u.PassHash), string(u.Role), formatTime(created))
	if err != nil {
		return 0, s.classify("create user", err)
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, s.classify("create user: last id", err)
	}
	u.ID, u.CreatedAt = id, created
	return id, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (u *models.User, err error) {
	defer monitoring.ObserveStore("get_user", time.Now(), &err)
	u, err = scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(fmt.Sprintf("user %d not found", id))
	}
	if err != nil {
		return nil, s.classify("get user", err)
	}
	return u, nil
}

// FindUserByUsername is an exact-match lookup; it returns a not_found error when absent.
func (s *SQLiteStore) FindUserByUsername(ctx context.Context, username string) (u *models.User, err error) {
	defer monitoring.ObserveStore("find_user", time.Now(), &err)
	u, err = scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("user not found")
	}
	if err != nil {
		return nil, s.classify("find user", err)
	}
	return u, nil
}

func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, id int64, hash []byte) (err error) {
	defer monitoring.ObserveStore("update_user_password", time.Now(), &err)
	if len(hash) == 0 {
		return models.NewConstraintError("update password: empty hash", nil)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE id = ?`, string(hash), id)
	if err != nil {
		return s.classify("update password", err)
	}
	if rowsAffected(res) == 0 {
		return models.NewNotFoundError(fmt.Sprintf("user %d not found", id))
	}
	return nil
}

// EnsureDefaultAdmin provisions the bootstrap administrator when no account with that
// username exists. It reports whether the account was created.
func (s *SQLiteStore) EnsureDefaultAdmin(ctx context.Context, bcryptCost int) (created bool, err error) {
	defer monitoring.ObserveStore("ensure_default_admin", time.Now(), &err)
	var n int
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, DefaultAdminUsername).Scan(&n); err != nil {
		return false, s.classify("ensure admin: lookup", err)
	}
	if n > 0 {
		return false, nil
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultAdminPassword), bcryptCost)
	if err != nil {
		return false, fmt.Errorf("hash default admin password: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (username, password, role, created_at) VALUES (?, ?, ?, ?)`,
		DefaultAdminUsername, string(hash), string(models.RoleAdmin), formatTime(s.now()))
	if err != nil {
		return false, s.classify("ensure admin: insert", err)
	}
	if rowsAffected(res) == 0 {
		return false, nil
	}
	s.log.Warn("default administrator created with a well-known password; change it before real use",
		zap.String("username", DefaultAdminUsername))
	return true, nil
}

// --- Questionnaires ---

const questionnaireColumns = `id, title, description, is_active, created_at, updated_at`

func scanQuestionnaire(row interface{ Scan(...any) error }) (*models.Questionnaire, error) {
	var q models.Questionnaire
	var desc sql.NullString
	var active int64
	var created, updated string
	if err := row.Scan(&q.ID, &q.Title, &desc, &active, &created, &updated); err != nil {
		return nil, err
	}
	q.Description = desc.String
	q.IsActive = active != 0
	q.CreatedAt = parseTime(created)
	q.UpdatedAt = parseTime(updated)
	return &q, nil
}

func (s *SQLiteStore) CreateQuestionnaire(ctx context.Context, q *models.Questionnaire) (id int64, err error) {
	defer monitoring.ObserveStore("create_questionnaire", time.Now(), &err)
	if q == nil {
		return 0, models.NewConstraintError("create questionnaire: nil questionnaire", nil)
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO questionnaires (title, description, is_active, created_at, updated_at)
      VALUES (?, ?, ?, ?, ?)`, q.Title, toNullString(q.Description), boolToInt64(q.IsActive), formatTime(now), formatTime(now))
	if err != nil {
		return 0, s.classify("create questionnaire", err)
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, s.classify("create questionnaire: last id", err)
	}
	q.ID, q.CreatedAt, q.UpdatedAt = id, now, now
	return id, nil
}

func (s *SQLiteStore) GetQuestionnaire(ctx context.Context, id int64) (q *models.Questionnaire, err error) {
	defer monitoring.ObserveStore("get_questionnaire", time.Now(), &err)
	q, err = scanQuestionnaire(s.db.QueryRowContext(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(fmt.Sprintf("questionnaire %d not found", id))
	}
	if err != nil {
		return nil, s.classify("get questionnaire", err)
	}
	return q, nil
}

// ListQuestionnaires returns newest first; activeOnly hides questionnaires closed to respondents.
func (s *SQLiteStore) ListQuestionnaires(ctx context.Context, activeOnly bool) (out []*models.Questionnaire, err error) {
	defer monitoring.ObserveStore("list_questionnaires", time.Now(), &err)
	query := `SELECT ` + questionnaireColumns + ` FROM questionnaires`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, s.classify("list questionnaires", err)
	}
	defer s.closeRows("list questionnaires", rows)
	out = []*models.Questionnaire{}
	for rows.Next() {
		q, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, s.classify("list questionnaires: scan", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("list questionnaires: rows", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateQuestionnaire(ctx context.Context, q *models.Questionnaire) (err error) {
	defer monitoring.ObserveStore("update_questionnaire", time.Now(), &err)
	if q == nil {
		return models.NewConstraintError("update questionnaire: nil questionnaire", nil)
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, `UPDATE questionnaires SET title = ?, description = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		q.Title, toNullString(q.Description), boolToInt64(q.IsActive), formatTime(now), q.ID)
	if err != nil {
		return s.classify("update questionnaire", err)
	}
	if rowsAffected(res) == 0 {
		return models.NewNotFoundError(fmt.Sprintf("questionnaire %d not found", q.ID))
	}
	q.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) SetQuestionnaireActive(ctx context.Context, id int64, active bool) (err error) {
	defer monitoring.ObserveStore("set_questionnaire_active", time.Now(), &err)
	res, err := s.db.ExecContext(ctx, `UPDATE questionnaires SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt64(active), formatTime(s.now()), id)
	if err != nil {
		return s.classify("set questionnaire active", err)
	}
	if rowsAffected(res) == 0 {
		return models.NewNotFoundError(fmt.Sprintf("questionnaire %d not found", id))
	}
	return nil
}

// DeleteQuestionnaire removes a questionnaire and, by cascade, its questions. It fails with a
// constraint violation while responses still reference the questionnaire.
func (s *SQLiteStore) DeleteQuestionnaire(ctx context.Context, id int64) (err error) {
	defer monitoring.ObserveStore("delete_questionnaire", time.Now(), &err)
	res, err := s.db.ExecContext(ctx, `DELETE FROM questionnaires WHERE id = ?`, id)
	if err != nil {
		return s.classify("delete questionnaire", err)
	}
	if rowsAffected(res) == 0 {
		return models.NewNotFoundError(fmt.Sprintf("questionnaire %d not found", id))
	}
	return nil
}

// --- Questions ---

const questionColumns = `id, questionnaire_id, question_text, question_type, options, order_index, is_required, created_at`

func scanQuestion(row interface{ Scan(...any) error }) (*models.Question, error) {
	var q models.Question
	var typ, created string
	var opts sql.NullString
	var required int64
	if err := row.Scan(&q.ID, &q.QuestionnaireID, &q.Text, &typ, &opts, &q.OrderIndex, &required, &created); err != nil {
		return nil, err
	}
	options, err := decodeOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("decode options of question %d: %w", q.ID, err)
	}
	q.Type = models.QuestionType(typ)
	q.Options = options
	q.IsRequired = required != 0
	q.CreatedAt = parseTime(created)
	return &q, nil
}

// checkQuestionShape enforces the type enum and "options present iff multiple choice"
// before the row reaches SQLite, so the failure names the offending field.
func checkQuestionShape(q *models.Question) error {
	if q == nil {
		return models.NewConstraintError("question: nil question", nil)
	}
	if !q.Type.Valid() {
		return models.NewConstraintError(fmt.Sprintf("question: invalid type %q", q.Type), nil)
	}
	if q.Type == models.QuestionMultipleChoice && len(q.Options) == 0 {
		return models.NewConstraintError("question: multiple_choice requires options", nil)
	}
	if q.Type != models.QuestionMultipleChoice && q.Options != nil {
		return models.NewConstraintError(fmt.Sprintf("question: type %q does not take options", q.Type), nil)
	}
	return nil
}

func (s *SQLiteStore) insertQuestion(ctx context.Context, ex execer, q *models.Question) error {
	if err := checkQuestionShape(q); err != nil {
		return err
	}
	opts, err := encodeOptions(q.Options)
	if err != nil {
		return models.NewConstraintError("question: encode options", err)
	}
	created := s.now()
	res, err := ex.ExecContext(ctx, `INSERT INTO questions (questionnaire_id, question_text, question_type, options, order_index, is_required, created_at)
      VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.QuestionnaireID, q.Text, string(q.Type), opts, q.OrderIndex, boolToInt64(q.IsRequired), formatTime(created))
	if err != nil {
		return s.classify("create question", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return s.classify("create question: last id", err)
	}
	q.ID, q.CreatedAt = id, created
	return nil
}

func (s *SQLiteStore) CreateQuestion(ctx context.Context, q *models.Question) (id int64, err error) {
	defer monitoring.ObserveStore("create_question", time.Now(), &err)
	if err = s.insertQuestion(ctx, s.db, q); err != nil {
		return 0, err
	}
	return q.ID, nil
}

// CreateQuestions inserts all questions in one transaction: either every row is stored or none.
func (s *SQLiteStore) CreateQuestions(ctx context.Context, qs []*models.Question) (ids []int64, err error) {
	defer monitoring.ObserveStore("create_questions", time.Now(), &err)
	err = s.withTx(ctx, "create questions", func(tx *sql.Tx) error {
		ids = make([]int64, 0, len(qs))
		for _, q := range qs {
			if err := s.insertQuestion(ctx, tx, q); err != nil {
				return err
			}
			ids = append(ids, q.ID)
		}
		return nil
	})
	if err != nil {
		for _, q := range qs {
			if q != nil {
				q.ID = 0
			}
		}
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) GetQuestion(ctx context.Context, id int64) (q *models.Question, err error) {
	defer monitoring.ObserveStore("get_question", time.Now(), &err)
	q, err = scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(fmt.Sprintf("question %d not found", id))
	}
	if err != nil {
		return nil, s.classify("get question", err)
	}
	return q, nil
}

// ListQuestions returns the questions of a questionnaire in presentation order.
func (s *SQLiteStore) ListQuestions(ctx context.Context, questionnaireID int64) (out []*models.Question, err error) {
	defer monitoring.ObserveStore("list_questions", time.Now(), &err)
	return s.listQuestions(ctx, s.db, questionnaireID)
}

func (s *SQLiteStore) listQuestions(ctx context.Context, ex execer, questionnaireID int64) ([]*models.Question, error) {
	rows, err := ex.QueryContext(ctx, `SELECT `+questionColumns+` FROM questions
      WHERE questionnaire_id = ? ORDER BY order_index ASC, id ASC`, questionnaireID)
	if err != nil {
		return nil, s.classify("list questions", err)
	}
	defer s.closeRows("list questions", rows)
	out := []*models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, s.classify("list questions: scan", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("list questions: rows", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateQuestion(ctx context.Context, q *models.Question) (err error) {
	defer monitoring.ObserveStore("update_question", time.Now(), &err)
	if err = checkQuestionShape(q); err != nil {
		return err
	}
	opts, err := encodeOptions(q.Options)
	if err != nil {
		return models.NewConstraintError("question: encode options", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET question_text = ?, question_type = ?, options = ?, order_index = ?, is_required = ?
      WHERE id = ?`, q.Text, string(q.Type), opts, q.OrderIndex, boolToInt64(q.IsRequired), q.ID)
	if err != nil {
		return s.classify("update question", err)
	}
	if rowsAffected(res) == 0 {
		return models.NewNotFoundError(fmt.Sprintf("question %d not found", q.ID))
	}
	return nil
}

// DeleteQuestion fails with a constraint violation once answers reference the question.
func (s *SQLiteStore) DeleteQuestion(ctx context.Context, id int64) (err error) {
	defer monitoring.ObserveStore("delete_question", time.Now(), &err)
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return s.classify("delete question", err)
	}
	if rowsAffected(res) == 0 {
		return models.NewNotFoundError(fmt.Sprintf("question %d not found", id))
	}
	return nil
}

// NextOrderIndex returns one past the highest order index in the questionnaire (1 when empty).
func (s *SQLiteStore) NextOrderIndex(ctx context.Context, questionnaireID int64) (next int, err error) {
	defer monitoring.ObserveStore("next_order_index", time.Now(), &err)
	if err = s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_index), 0) + 1 FROM questions WHERE questionnaire_id = ?`,
		questionnaireID).Scan(&next); err != nil {
		return 0, s.classify("next order index", err)
	}
	return next, nil
}

// ReorderQuestions assigns order indexes 1..n following order; questions not listed keep
// their relative order after the listed ones. Unknown ids abort the whole reorder.
func (s *SQLiteStore) ReorderQuestions(ctx context.Context, questionnaireID int64, order []int64) (err error) {
	defer monitoring.ObserveStore("reorder_questions", time.Now(), &err)
	return s.withTx(ctx, "reorder questions", func(tx *sql.Tx) error {
		current, err := s.listQuestions(ctx, tx, questionnaireID)
		if err != nil {
			return err
		}
		belongs := make(map[int64]bool, len(current))
		for _, q := range current {
			belongs[q.ID] = true
		}
		seen := map[int64]bool{}
		final := make([]int64, 0, len(current))
		for _, id := range order {
			if seen[id] {
				continue
			}
			if !belongs[id] {
				return models.NewNotFoundError(fmt.Sprintf("question %d not in questionnaire %d", id, questionnaireID))
			}
			seen[id] = true
			final = append(final, id)
		}
		for _, q := range current {
			if !seen[q.ID] {
				final = append(final, q.ID)
			}
		}
		for i, id := range final {
			if _, err := tx.ExecContext(ctx, `UPDATE questions SET order_index = ? WHERE id = ? AND questionnaire_id = ?`,
				i+1, id, questionnaireID); err != nil {
				return s.classify("reorder questions: update", err)
			}
		}
		return nil
	})
}
