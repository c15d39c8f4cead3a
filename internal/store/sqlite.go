package store

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

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
	"github.com/MikeSquared-Agency/Maturity/internal/scoring"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore is the local, single-file store. It is the default backend.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if err := migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// --- Answers ---

func (s *SQLiteStore) GetAnswers(ctx context.Context, userID string) (scoring.Answers, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question_id, rating FROM answers WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := scoring.Answers{}
	for rows.Next() {
		var qid string
		var rating int
		if err := rows.Scan(&qid, &rating); err != nil {
			return nil, err
		}
		answers[qid] = rating
	}
	return answers, rows.Err()
}

func (s *SQLiteStore) AllAnswers(ctx context.Context) (map[string]scoring.Answers, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, question_id, rating FROM answers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]scoring.Answers)
	for rows.Next() {
		var uid, qid string
		var rating int
		if err := rows.Scan(&uid, &qid, &rating); err != nil {
			return nil, err
		}
		if out[uid] == nil {
			out[uid] = scoring.Answers{}
		}
		out[uid][qid] = rating
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetAnswer(ctx context.Context, userID, questionID string, rating int) error {
	if err := validateRating(rating); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO answers (user_id, question_id, rating, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, question_id) DO UPDATE SET rating = excluded.rating, updated_at = excluded.updated_at`,
		userID, questionID, rating, now())
	return err
}

func (s *SQLiteStore) ClearAnswer(ctx context.Context, userID, questionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM answers WHERE user_id = ? AND question_id = ?`, userID, questionID)
	return err
}

func (s *SQLiteStore) DeleteAnswers(ctx context.Context, questionIDs []string) (int64, error) {
	if len(questionIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(questionIDs)), ",")
	args := make([]any, len(questionIDs))
	for i, id := range questionIDs {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM answers WHERE question_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Evidence ---

func (s *SQLiteStore) SaveEvidence(ctx context.Context, ev *Evidence, mergeImages bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	images := withNewImageIDs(ev.Images)
	if mergeImages {
		existing, err := loadImagesSQLite(ctx, tx, ev.UserID, ev.QuestionID)
		if err != nil {
			return err
		}
		images = MergeImages(existing, images)
	}

	ev.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO evidence (user_id, question_id, text, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, question_id) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at`,
		ev.UserID, ev.QuestionID, ev.Text, ev.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert evidence: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM evidence_images WHERE user_id = ? AND question_id = ?`, ev.UserID, ev.QuestionID); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	for i, img := range images {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO evidence_images (id, user_id, question_id, position, name, mime_type, data)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			img.ID.String(), ev.UserID, ev.QuestionID, i, img.Name, img.MimeType, img.Data); err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	ev.Images = images
	return nil
}

type sqlQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadImagesSQLite(ctx context.Context, q sqlQueryer, userID, questionID string) ([]Image, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, mime_type, data FROM evidence_images
		WHERE user_id = ? AND question_id = ? ORDER BY position`, userID, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		var img Image
		var id string
		if err := rows.Scan(&id, &img.Name, &img.MimeType, &img.Data); err != nil {
			return nil, err
		}
		img.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("image id %q: %w", id, err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *SQLiteStore) GetEvidence(ctx context.Context, userID, questionID string) (*Evidence, error) {
	ev := &Evidence{UserID: userID, QuestionID: questionID}
	var updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT text, updated_at FROM evidence WHERE user_id = ? AND question_id = ?`,
		userID, questionID).Scan(&ev.Text, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ev.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	ev.Images, err = loadImagesSQLite(ctx, s.db, userID, questionID)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *SQLiteStore) ListEvidence(ctx context.Context, userID string) ([]*Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, text, updated_at FROM evidence WHERE user_id = ? ORDER BY question_id`, userID)
	if err != nil {
		return nil, err
	}
	var out []*Evidence
	for rows.Next() {
		ev := &Evidence{UserID: userID}
		var updated string
		if err := rows.Scan(&ev.QuestionID, &ev.Text, &updated); err != nil {
			rows.Close()
			return nil, err
		}
		ev.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Close before loading images: the pool holds a single connection.
	rows.Close()

	for _, ev := range out {
		ev.Images, err = loadImagesSQLite(ctx, s.db, userID, ev.QuestionID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) DeleteEvidence(ctx context.Context, userID, questionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM evidence_images WHERE user_id = ? AND question_id = ?`, userID, questionID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE user_id = ? AND question_id = ?`, userID, questionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// --- Frameworks ---

const frameworkColumnsSQLite = `id, name, enabled, threshold, mapped_questions, color, icon, description`

type sqlRowScanner interface {
	Scan(dest ...any) error
}

func scanFrameworkSQLite(row sqlRowScanner) (catalog.Framework, error) {
	var fw catalog.Framework
	var mapped string
	if err := row.Scan(&fw.ID, &fw.Name, &fw.Enabled, &fw.Threshold, &mapped, &fw.Color, &fw.Icon, &fw.Description); err != nil {
		return fw, err
	}
	if err := json.Unmarshal([]byte(mapped), &fw.MappedQuestions); err != nil {
		return fw, fmt.Errorf("framework %s mapped_questions: %w", fw.ID, err)
	}
	return fw, nil
}

func (s *SQLiteStore) ListFrameworks(ctx context.Context) ([]catalog.Framework, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+frameworkColumnsSQLite+` FROM frameworks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Framework
	for rows.Next() {
		fw, err := scanFrameworkSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fw)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetFramework(ctx context.Context, id string) (*catalog.Framework, error) {
	fw, err := scanFrameworkSQLite(s.db.QueryRowContext(ctx, `SELECT `+frameworkColumnsSQLite+` FROM frameworks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fw, nil
}

func (s *SQLiteStore) UpsertFramework(ctx context.Context, fw *catalog.Framework) error {
	if err := fw.Validate(); err != nil {
		return err
	}
	mapped := fw.MappedQuestions
	if mapped == nil {
		mapped = []string{}
	}
	mappedJSON, err := json.Marshal(mapped)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO frameworks (`+frameworkColumnsSQLite+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, enabled = excluded.enabled, threshold = excluded.threshold,
			mapped_questions = excluded.mapped_questions, color = excluded.color,
			icon = excluded.icon, description = excluded.description`,
		fw.ID, fw.Name, fw.Enabled, fw.Threshold, string(mappedJSON), fw.Color, fw.Icon, fw.Description)
	return err
}

func (s *SQLiteStore) DeleteFramework(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM frameworks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Users ---

func scanUserSQLite(row sqlRowScanner) (catalog.User, error) {
	var u catalog.User
	var assigned string
	if err := row.Scan(&u.ID, &u.Name, &u.Role, &assigned); err != nil {
		return u, err
	}
	if err := json.Unmarshal([]byte(assigned), &u.AssignedQuestions); err != nil {
		return u, fmt.Errorf("user %s assigned_questions: %w", u.ID, err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]catalog.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, role, assigned_questions FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.User
	for rows.Next() {
		u, err := scanUserSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*catalog.User, error) {
	u, err := scanUserSQLite(s.db.QueryRowContext(ctx, `SELECT id, name, role, assigned_questions FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u *catalog.User) error {
	if u.Role == "" {
		u.Role = catalog.RoleUser
	}
	assigned := u.AssignedQuestions
	if assigned == nil {
		assigned = []string{}
	}
	assignedJSON, err := json.Marshal(assigned)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, role, assigned_questions)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, role = excluded.role, assigned_questions = excluded.assigned_questions`,
		u.ID, u.Name, string(u.Role), string(assignedJSON))
	return err
}
