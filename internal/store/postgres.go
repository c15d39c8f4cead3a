package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
	"github.com/MikeSquared-Agency/Maturity/internal/scoring"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "migrations/postgres")
	_ = db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Answers ---

func (s *PostgresStore) GetAnswers(ctx context.Context, userID string) (scoring.Answers, error) {
	rows, err := s.pool.Query(ctx, `SELECT question_id, rating FROM answers WHERE user_id = $1`, userID)
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

func (s *PostgresStore) AllAnswers(ctx context.Context) (map[string]scoring.Answers, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, question_id, rating FROM answers`)
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

func (s *PostgresStore) SetAnswer(ctx context.Context, userID, questionID string, rating int) error {
	if err := validateRating(rating); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answers (user_id, question_id, rating, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, question_id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = now()`,
		userID, questionID, rating)
	return err
}

func (s *PostgresStore) ClearAnswer(ctx context.Context, userID, questionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM answers WHERE user_id = $1 AND question_id = $2`, userID, questionID)
	return err
}

func (s *PostgresStore) DeleteAnswers(ctx context.Context, questionIDs []string) (int64, error) {
	if len(questionIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM answers WHERE question_id = ANY($1)`, questionIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- Evidence ---

func (s *PostgresStore) SaveEvidence(ctx context.Context, ev *Evidence, mergeImages bool) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row lock serialises concurrent saves for the same record.
	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT true FROM evidence WHERE user_id = $1 AND question_id = $2 FOR UPDATE`,
		ev.UserID, ev.QuestionID).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	images := withNewImageIDs(ev.Images)
	if mergeImages && exists {
		existing, err := loadImagesPostgres(ctx, tx, ev.UserID, ev.QuestionID)
		if err != nil {
			return err
		}
		images = MergeImages(existing, images)
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO evidence (user_id, question_id, text, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, question_id) DO UPDATE SET text = EXCLUDED.text, updated_at = now()
		RETURNING updated_at`,
		ev.UserID, ev.QuestionID, ev.Text).Scan(&ev.UpdatedAt); err != nil {
		return fmt.Errorf("upsert evidence: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM evidence_images WHERE user_id = $1 AND question_id = $2`, ev.UserID, ev.QuestionID); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	for i, img := range images {
		if _, err := tx.Exec(ctx, `
			INSERT INTO evidence_images (id, user_id, question_id, position, name, mime_type, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			img.ID, ev.UserID, ev.QuestionID, i, img.Name, img.MimeType, img.Data); err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	ev.Images = images
	return nil
}

type pgQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadImagesPostgres(ctx context.Context, q pgQueryer, userID, questionID string) ([]Image, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, mime_type, data FROM evidence_images
		WHERE user_id = $1 AND question_id = $2 ORDER BY position`, userID, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.Name, &img.MimeType, &img.Data); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *PostgresStore) GetEvidence(ctx context.Context, userID, questionID string) (*Evidence, error) {
	ev := &Evidence{UserID: userID, QuestionID: questionID}
	err := s.pool.QueryRow(ctx, `
		SELECT text, updated_at FROM evidence WHERE user_id = $1 AND question_id = $2`,
		userID, questionID).Scan(&ev.Text, &ev.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ev.Images, err = loadImagesPostgres(ctx, s.pool, userID, questionID)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *PostgresStore) ListEvidence(ctx context.Context, userID string) ([]*Evidence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id, text, updated_at FROM evidence WHERE user_id = $1 ORDER BY question_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Evidence
	for rows.Next() {
		ev := &Evidence{UserID: userID}
		if err := rows.Scan(&ev.QuestionID, &ev.Text, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, ev := range out {
		ev.Images, err = loadImagesPostgres(ctx, s.pool, userID, ev.QuestionID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) DeleteEvidence(ctx context.Context, userID, questionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM evidence WHERE user_id = $1 AND question_id = $2`, userID, questionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Frameworks ---

const frameworkColumns = `id, name, enabled, threshold, mapped_questions, color, icon, description`

func scanFramework(row pgx.Row) (catalog.Framework, error) {
	var fw catalog.Framework
	err := row.Scan(&fw.ID, &fw.Name, &fw.Enabled, &fw.Threshold, &fw.MappedQuestions, &fw.Color, &fw.Icon, &fw.Description)
	return fw, err
}

func (s *PostgresStore) ListFrameworks(ctx context.Context) ([]catalog.Framework, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+frameworkColumns+` FROM frameworks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Framework
	for rows.Next() {
		fw, err := scanFramework(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fw)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetFramework(ctx context.Context, id string) (*catalog.Framework, error) {
	fw, err := scanFramework(s.pool.QueryRow(ctx, `SELECT `+frameworkColumns+` FROM frameworks WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fw, nil
}

func (s *PostgresStore) UpsertFramework(ctx context.Context, fw *catalog.Framework) error {
	if err := fw.Validate(); err != nil {
		return err
	}
	mapped := fw.MappedQuestions
	if mapped == nil {
		mapped = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO frameworks (`+frameworkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, enabled = EXCLUDED.enabled, threshold = EXCLUDED.threshold,
			mapped_questions = EXCLUDED.mapped_questions, color = EXCLUDED.color,
			icon = EXCLUDED.icon, description = EXCLUDED.description`,
		fw.ID, fw.Name, fw.Enabled, fw.Threshold, mapped, fw.Color, fw.Icon, fw.Description)
	return err
}

func (s *PostgresStore) DeleteFramework(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM frameworks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Users ---

func scanUser(row pgx.Row) (catalog.User, error) {
	var u catalog.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &role, &u.AssignedQuestions)
	u.Role = catalog.Role(role)
	return u, err
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]catalog.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, role, assigned_questions FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*catalog.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT id, name, role, assigned_questions FROM users WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u *catalog.User) error {
	if u.Role == "" {
		u.Role = catalog.RoleUser
	}
	assigned := u.AssignedQuestions
	if assigned == nil {
		assigned = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, role, assigned_questions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, role = EXCLUDED.role, assigned_questions = EXCLUDED.assigned_questions`,
		u.ID, u.Name, string(u.Role), assigned)
	return err
}
