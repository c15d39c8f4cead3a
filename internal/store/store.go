package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
	"github.com/MikeSquared-Agency/Maturity/internal/scoring"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")
)

// Image is an evidence attachment. Order within an Evidence record is preserved.
type Image struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	MimeType string    `json:"mime_type"`
	Data     []byte    `json:"data,omitempty"`
}

// Evidence substantiates one user's answer to one question. Saving again
// overwrites the record.
type Evidence struct {
	UserID     string    `json:"user_id"`
	QuestionID string    `json:"question_id"`
	Text       string    `json:"text"`
	Images     []Image   `json:"images"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Store interface {
	// Answers
	GetAnswers(ctx context.Context, userID string) (scoring.Answers, error)
	AllAnswers(ctx context.Context) (map[string]scoring.Answers, error)
	SetAnswer(ctx context.Context, userID, questionID string, rating int) error
	ClearAnswer(ctx context.Context, userID, questionID string) error
	DeleteAnswers(ctx context.Context, questionIDs []string) (int64, error)

	// Evidence
	SaveEvidence(ctx context.Context, ev *Evidence, mergeImages bool) error
	GetEvidence(ctx context.Context, userID, questionID string) (*Evidence, error)
	ListEvidence(ctx context.Context, userID string) ([]*Evidence, error)
	DeleteEvidence(ctx context.Context, userID, questionID string) error

	// Frameworks
	ListFrameworks(ctx context.Context) ([]catalog.Framework, error)
	GetFramework(ctx context.Context, id string) (*catalog.Framework, error)
	UpsertFramework(ctx context.Context, fw *catalog.Framework) error
	DeleteFramework(ctx context.Context, id string) error

	// Users
	ListUsers(ctx context.Context) ([]catalog.User, error)
	GetUser(ctx context.Context, id string) (*catalog.User, error)
	UpsertUser(ctx context.Context, u *catalog.User) error

	Close() error
}

// MergeImages keeps existing images, replaces those whose name matches an
// incoming image and appends the rest in incoming order.
func MergeImages(existing, incoming []Image) []Image {
	out := make([]Image, len(existing))
	copy(out, existing)
	index := make(map[string]int, len(out))
	for i, img := range out {
		index[img.Name] = i
	}
	for _, img := range incoming {
		if i, ok := index[img.Name]; ok {
			out[i] = img
			continue
		}
		index[img.Name] = len(out)
		out = append(out, img)
	}
	return out
}

// withNewImageIDs copies incoming images and gives each a server-side ID.
// Client-supplied IDs are ignored.
func withNewImageIDs(incoming []Image) []Image {
	out := make([]Image, len(incoming))
	for i, img := range incoming {
		img.ID = uuid.New()
		out[i] = img
	}
	return out
}

func validateRating(rating int) error {
	if !scoring.ValidRating(rating) {
		return ErrInvalidRating
	}
	return nil
}
