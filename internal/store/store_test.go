package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
)

func setupSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "data", "maturity.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteAnswers(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	if err := s.SetAnswer(ctx, "alice", "q1", 3); err != nil {
		t.Fatalf("SetAnswer failed: %v", err)
	}
	if err := s.SetAnswer(ctx, "alice", "q1", 4); err != nil {
		t.Fatalf("SetAnswer overwrite failed: %v", err)
	}
	if err := s.SetAnswer(ctx, "alice", "q2", 5); err != nil {
		t.Fatalf("SetAnswer failed: %v", err)
	}
	if err := s.SetAnswer(ctx, "bob", "q1", 1); err != nil {
		t.Fatalf("SetAnswer failed: %v", err)
	}

	answers, err := s.GetAnswers(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAnswers failed: %v", err)
	}
	if len(answers) != 2 || answers["q1"] != 4 || answers["q2"] != 5 {
		t.Errorf("unexpected answers: %v", answers)
	}

	if err := s.ClearAnswer(ctx, "alice", "q1"); err != nil {
		t.Fatalf("ClearAnswer failed: %v", err)
	}
	// Clearing twice is a no-op.
	if err := s.ClearAnswer(ctx, "alice", "q1"); err != nil {
		t.Fatalf("second ClearAnswer failed: %v", err)
	}
	answers, _ = s.GetAnswers(ctx, "alice")
	if _, ok := answers["q1"]; ok {
		t.Error("expected q1 to be cleared")
	}

	all, err := s.AllAnswers(ctx)
	if err != nil {
		t.Fatalf("AllAnswers failed: %v", err)
	}
	if len(all) != 2 || all["bob"]["q1"] != 1 {
		t.Errorf("unexpected all answers: %v", all)
	}
}

func TestSQLiteSetAnswerRejectsInvalidRating(t *testing.T) {
	s := setupSQLite(t)
	for _, r := range []int{0, 6, -3} {
		if err := s.SetAnswer(context.Background(), "alice", "q1", r); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: expected ErrInvalidRating, got %v", r, err)
		}
	}
}

func TestSQLiteDeleteAnswers(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	_ = s.SetAnswer(ctx, "alice", "ghost", 2)
	_ = s.SetAnswer(ctx, "bob", "ghost", 3)
	_ = s.SetAnswer(ctx, "bob", "q1", 3)

	n, err := s.DeleteAnswers(ctx, []string{"ghost"})
	if err != nil {
		t.Fatalf("DeleteAnswers failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows deleted, got %d", n)
	}
	if n, _ := s.DeleteAnswers(ctx, nil); n != 0 {
		t.Errorf("expected 0 for empty input, got %d", n)
	}
	answers, _ := s.GetAnswers(ctx, "bob")
	if len(answers) != 1 {
		t.Errorf("expected q1 to survive, got %v", answers)
	}
}

func TestSQLiteEvidenceOverwriteAndMerge(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	ev := &Evidence{
		UserID: "alice", QuestionID: "q1", Text: "first",
		Images: []Image{{Name: "a.png", MimeType: "image/png", Data: []byte{1}}},
	}
	if err := s.SaveEvidence(ctx, ev, false); err != nil {
		t.Fatalf("SaveEvidence failed: %v", err)
	}
	if ev.Images[0].ID == uuid.Nil {
		t.Error("expected image id to be assigned")
	}

	merged := &Evidence{
		UserID: "alice", QuestionID: "q1", Text: "second",
		Images: []Image{
			{Name: "b.png", MimeType: "image/png", Data: []byte{2}},
			{Name: "a.png", MimeType: "image/png", Data: []byte{9}},
		},
	}
	if err := s.SaveEvidence(ctx, merged, true); err != nil {
		t.Fatalf("SaveEvidence merge failed: %v", err)
	}

	got, err := s.GetEvidence(ctx, "alice", "q1")
	if err != nil || got == nil {
		t.Fatalf("GetEvidence failed: %v", err)
	}
	if got.Text != "second" {
		t.Errorf("expected text overwritten, got %q", got.Text)
	}
	if len(got.Images) != 2 || got.Images[0].Name != "a.png" || got.Images[0].Data[0] != 9 || got.Images[1].Name != "b.png" {
		t.Errorf("unexpected merged images: %+v", got.Images)
	}

	replaced := &Evidence{UserID: "alice", QuestionID: "q1", Text: "third"}
	if err := s.SaveEvidence(ctx, replaced, false); err != nil {
		t.Fatalf("SaveEvidence replace failed: %v", err)
	}
	got, _ = s.GetEvidence(ctx, "alice", "q1")
	if len(got.Images) != 0 {
		t.Errorf("expected images replaced, got %d", len(got.Images))
	}

	list, err := s.ListEvidence(ctx, "alice")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListEvidence: %v %v", list, err)
	}

	if err := s.DeleteEvidence(ctx, "alice", "q1"); err != nil {
		t.Fatalf("DeleteEvidence failed: %v", err)
	}
	if err := s.DeleteEvidence(ctx, "alice", "q1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if got, err := s.GetEvidence(ctx, "alice", "q1"); got != nil || err != nil {
		t.Errorf("expected nil evidence after delete, got %v %v", got, err)
	}
}

func TestSQLiteEvidenceResaveFetchedImages(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	first := &Evidence{
		UserID: "alice", QuestionID: "q1", Text: "original",
		Images: []Image{{Name: "a.png", MimeType: "image/png", Data: []byte{1}}},
	}
	if err := s.SaveEvidence(ctx, first, false); err != nil {
		t.Fatalf("SaveEvidence failed: %v", err)
	}
	fetched, err := s.GetEvidence(ctx, "alice", "q1")
	if err != nil || fetched == nil {
		t.Fatalf("GetEvidence failed: %v", err)
	}

	// Re-saving images that carry stored IDs onto other records must not collide.
	targets := []struct{ user, question string }{{"alice", "q2"}, {"bob", "q1"}, {"alice", "q1"}}
	for _, tt := range targets {
		ev := &Evidence{UserID: tt.user, QuestionID: tt.question, Images: fetched.Images}
		if err := s.SaveEvidence(ctx, ev, false); err != nil {
			t.Fatalf("SaveEvidence %s/%s failed: %v", tt.user, tt.question, err)
		}
		if ev.Images[0].ID == fetched.Images[0].ID {
			t.Errorf("%s/%s: expected a new image id", tt.user, tt.question)
		}
	}

	merged := &Evidence{UserID: "alice", QuestionID: "q2", Images: fetched.Images}
	if err := s.SaveEvidence(ctx, merged, true); err != nil {
		t.Fatalf("SaveEvidence merge failed: %v", err)
	}
	got, _ := s.GetEvidence(ctx, "alice", "q2")
	if got == nil || len(got.Images) != 1 || got.Images[0].Data[0] != 1 {
		t.Errorf("unexpected images after merge: %+v", got)
	}
	if fetched.Images[0].ID != first.Images[0].ID {
		t.Error("caller's image slice was mutated")
	}
}

func TestSQLiteFrameworks(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	fw := &catalog.Framework{ID: "iso", Name: "ISO 27001", Enabled: true, Threshold: 3.5, MappedQuestions: []string{"q1", "q2"}}
	if err := s.UpsertFramework(ctx, fw); err != nil {
		t.Fatalf("UpsertFramework failed: %v", err)
	}
	fw.Enabled = false
	if err := s.UpsertFramework(ctx, fw); err != nil {
		t.Fatalf("UpsertFramework update failed: %v", err)
	}
	if err := s.UpsertFramework(ctx, &catalog.Framework{ID: "bad", Threshold: 70}); !errors.Is(err, catalog.ErrInvalidCatalog) {
		t.Errorf("expected threshold validation error, got %v", err)
	}

	got, err := s.GetFramework(ctx, "iso")
	if err != nil || got == nil {
		t.Fatalf("GetFramework failed: %v", err)
	}
	if got.Enabled || got.Threshold != 3.5 || len(got.MappedQuestions) != 2 {
		t.Errorf("unexpected framework: %+v", got)
	}

	list, err := s.ListFrameworks(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListFrameworks: %v %v", list, err)
	}

	if err := s.DeleteFramework(ctx, "iso"); err != nil {
		t.Fatalf("DeleteFramework failed: %v", err)
	}
	if err := s.DeleteFramework(ctx, "iso"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if got, _ := s.GetFramework(ctx, "iso"); got != nil {
		t.Error("expected framework to be gone")
	}
}

func TestSQLiteUsers(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, &catalog.User{ID: "alice", Name: "Alice", AssignedQuestions: []string{"q1"}}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if err := s.UpsertUser(ctx, &catalog.User{ID: "root", Role: catalog.RoleAdmin}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	u, err := s.GetUser(ctx, "alice")
	if err != nil || u == nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.Role != catalog.RoleUser || len(u.AssignedQuestions) != 1 {
		t.Errorf("unexpected user: %+v", u)
	}

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("ListUsers: %v %v", users, err)
	}
	if users[1].Role != catalog.RoleAdmin || users[1].AssignedQuestions == nil {
		t.Errorf("unexpected admin user: %+v", users[1])
	}

	if u, _ := s.GetUser(ctx, "nobody"); u != nil {
		t.Error("expected nil for unknown user")
	}
}

func TestMergeImages(t *testing.T) {
	existing := []Image{{Name: "a"}, {Name: "b"}}
	incoming := []Image{{Name: "c"}, {Name: "a", MimeType: "new"}}
	got := MergeImages(existing, incoming)
	if len(got) != 3 || got[0].MimeType != "new" || got[2].Name != "c" {
		t.Errorf("unexpected merge: %+v", got)
	}
	if existing[0].MimeType != "" {
		t.Error("existing slice was mutated")
	}
}
