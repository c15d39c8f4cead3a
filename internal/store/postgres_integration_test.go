//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE evidence_images, evidence, answers, frameworks, users CASCADE")
		s.Close()
	})

	return s
}

func TestPostgresAnswers(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.SetAnswer(ctx, "alice", "q1", 2); err != nil {
		t.Fatalf("SetAnswer failed: %v", err)
	}
	if err := s.SetAnswer(ctx, "alice", "q1", 5); err != nil {
		t.Fatalf("SetAnswer overwrite failed: %v", err)
	}
	if err := s.SetAnswer(ctx, "alice", "q2", 9); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating, got %v", err)
	}

	answers, err := s.GetAnswers(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAnswers failed: %v", err)
	}
	if answers["q1"] != 5 || len(answers) != 1 {
		t.Errorf("unexpected answers: %v", answers)
	}

	if err := s.ClearAnswer(ctx, "alice", "q1"); err != nil {
		t.Fatalf("ClearAnswer failed: %v", err)
	}
	answers, _ = s.GetAnswers(ctx, "alice")
	if len(answers) != 0 {
		t.Errorf("expected no answers, got %v", answers)
	}

	_ = s.SetAnswer(ctx, "bob", "ghost", 3)
	n, err := s.DeleteAnswers(ctx, []string{"ghost"})
	if err != nil || n != 1 {
		t.Errorf("DeleteAnswers: %d %v", n, err)
	}
}

func TestPostgresEvidence(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	ev := &Evidence{UserID: "alice", QuestionID: "q1", Text: "v1", Images: []Image{{Name: "a.png", MimeType: "image/png", Data: []byte{1, 2}}}}
	if err := s.SaveEvidence(ctx, ev, false); err != nil {
		t.Fatalf("SaveEvidence failed: %v", err)
	}
	more := &Evidence{UserID: "alice", QuestionID: "q1", Text: "v2", Images: []Image{{Name: "b.png", MimeType: "image/png"}}}
	if err := s.SaveEvidence(ctx, more, true); err != nil {
		t.Fatalf("SaveEvidence merge failed: %v", err)
	}

	got, err := s.GetEvidence(ctx, "alice", "q1")
	if err != nil || got == nil {
		t.Fatalf("GetEvidence failed: %v", err)
	}
	if got.Text != "v2" || len(got.Images) != 2 {
		t.Errorf("unexpected evidence: %+v", got)
	}

	if err := s.DeleteEvidence(ctx, "alice", "q1"); err != nil {
		t.Fatalf("DeleteEvidence failed: %v", err)
	}
	if err := s.DeleteEvidence(ctx, "alice", "q1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresEvidenceResaveFetchedImages(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	first := &Evidence{UserID: "alice", QuestionID: "q1", Images: []Image{{Name: "a.png", MimeType: "image/png"}}}
	if err := s.SaveEvidence(ctx, first, false); err != nil {
		t.Fatalf("SaveEvidence failed: %v", err)
	}
	fetched, err := s.GetEvidence(ctx, "alice", "q1")
	if err != nil || fetched == nil {
		t.Fatalf("GetEvidence failed: %v", err)
	}
	for _, q := range []string{"q2", "q3"} {
		if err := s.SaveEvidence(ctx, &Evidence{UserID: "bob", QuestionID: q, Images: fetched.Images}, false); err != nil {
			t.Fatalf("SaveEvidence bob/%s failed: %v", q, err)
		}
	}
	again := &Evidence{UserID: "alice", QuestionID: "q1", Images: fetched.Images}
	if err := s.SaveEvidence(ctx, again, true); err != nil {
		t.Fatalf("merge re-save failed: %v", err)
	}
	if len(again.Images) != 1 || again.Images[0].ID == fetched.Images[0].ID {
		t.Errorf("expected one image with a new ID, got %+v", again.Images)
	}
}

func TestPostgresFrameworksAndUsers(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	fw := &catalog.Framework{ID: "nist", Name: "NIST CSF", Enabled: true, Threshold: 3, MappedQuestions: []string{"q1"}}
	if err := s.UpsertFramework(ctx, fw); err != nil {
		t.Fatalf("UpsertFramework failed: %v", err)
	}
	got, err := s.GetFramework(ctx, "nist")
	if err != nil || got == nil || got.MappedQuestions[0] != "q1" {
		t.Fatalf("GetFramework: %+v %v", got, err)
	}

	if err := s.UpsertUser(ctx, &catalog.User{ID: "alice", AssignedQuestions: []string{"q1", "q2"}}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	u, err := s.GetUser(ctx, "alice")
	if err != nil || u == nil || len(u.AssignedQuestions) != 2 || u.Role != catalog.RoleUser {
		t.Fatalf("GetUser: %+v %v", u, err)
	}
}
