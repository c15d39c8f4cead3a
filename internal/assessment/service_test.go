package assessment

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
	"github.com/MikeSquared-Agency/Maturity/internal/store"
)

// MockHermes implements hermes.Client for testing
type MockHermes struct {
	mock.Mock
}

func (m *MockHermes) Publish(_ context.Context, subject, msgID string, data interface{}) error {
	args := m.Called(subject, msgID, data)
	return args.Error(0)
}

func (m *MockHermes) Close() {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, h *MockHermes, metrics *Metrics) (*Service, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "maturity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	opts := Options{Metrics: metrics}
	if h != nil {
		opts.Hermes = h
	}
	return NewService(testCatalog(), s, opts, testLogger()), s
}

func TestSetAnswerRecomputes(t *testing.T) {
	h := &MockHermes{}
	h.On("Publish", "maturity.answer.alice.set", mock.AnythingOfType("string"), mock.Anything).Return(nil).Once()
	h.On("Publish", "maturity.score.alice.recomputed", mock.AnythingOfType("string"), mock.Anything).Return(nil).Once()
	svc, _ := newTestService(t, h, nil)

	r, err := svc.SetAnswer(context.Background(), "alice", "sec-1", 4)
	require.NoError(t, err)

	assert.Equal(t, "alice", r.UserID)
	assert.Equal(t, 1, r.Score.Answered)
	require.NotNil(t, r.Score.DomainScores["security"])
	assert.InDelta(t, 4.0, *r.Score.DomainScores["security"], 0.001)
	assert.Nil(t, r.Score.DomainScores["operations"])
	assert.InDelta(t, 2.4, r.Score.Overall, 0.001)
	h.AssertExpectations(t)
}

func TestSetAnswerRejects(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.SetAnswer(ctx, "alice", "nope", 3)
	assert.ErrorIs(t, err, ErrUnknownQuestion)

	_, err = svc.SetAnswer(ctx, "alice", "sec-1", 0)
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = svc.SetAnswer(ctx, "alice", "sec-1", 6)
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestSelectAnswerToggles(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	intent, r, err := svc.SelectAnswer(ctx, "alice", "ops-1", 3)
	require.NoError(t, err)
	assert.Equal(t, IntentSet, intent)
	assert.Equal(t, 1, r.Score.Answered)

	intent, r, err = svc.SelectAnswer(ctx, "alice", "ops-1", 3)
	require.NoError(t, err)
	assert.Equal(t, IntentClear, intent)
	assert.Equal(t, 0, r.Score.Answered)

	intent, _, err = svc.SelectAnswer(ctx, "alice", "ops-1", 5)
	require.NoError(t, err)
	assert.Equal(t, IntentSet, intent)

	answers, err := svc.Answers(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, answers["ops-1"])
}

func TestClearUnansweredIsNotAnError(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	r, err := svc.ClearAnswer(context.Background(), "alice", "sec-1")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Progress.Answered)
}

func TestComplianceAfterFrameworkUpsert(t *testing.T) {
	h := &MockHermes{}
	h.On("Publish", mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.Anything).Return(nil)
	svc, _ := newTestService(t, h, nil)
	ctx := context.Background()

	require.NoError(t, svc.UpsertFramework(ctx, &catalog.Framework{
		ID: "soc2", Name: "SOC 2", Enabled: true, Threshold: 3.5, MappedQuestions: []string{"sec-1", "ops-1"},
	}))
	assert.Error(t, svc.UpsertFramework(ctx, &catalog.Framework{ID: "bad", Threshold: 7}))

	_, err := svc.SetAnswer(ctx, "alice", "sec-1", 3)
	require.NoError(t, err)
	r, err := svc.SetAnswer(ctx, "alice", "ops-1", 4)
	require.NoError(t, err)

	res := r.Compliance.Results["soc2"]
	require.NotNil(t, res)
	assert.InDelta(t, 3.5, res.AverageRating, 0.001)
	assert.True(t, res.IsCompliant)
	assert.InDelta(t, 70.0, res.Score, 0.001)
	assert.InDelta(t, 100.0, r.Compliance.ComplianceRate, 0.001)
	h.AssertCalled(t, "Publish", "maturity.framework.soc2.updated", mock.AnythingOfType("string"), mock.Anything)
}

func TestEvidenceLifecycle(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.SetAnswer(ctx, "alice", "sec-2", 4)
	require.NoError(t, err)

	gaps, err := svc.EvidenceGaps(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"sec-2"}, gaps)

	saved, err := svc.SaveEvidence(ctx, &store.Evidence{
		UserID: "alice", QuestionID: "sec-2", Text: "quarterly review",
		Images: []store.Image{{Name: "review.png", MimeType: "image/png", Data: []byte{1}}},
	}, false)
	require.NoError(t, err)
	assert.Len(t, saved.Images, 1)

	gaps, err = svc.EvidenceGaps(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, gaps)

	_, err = svc.SaveEvidence(ctx, &store.Evidence{UserID: "alice", QuestionID: "missing"}, false)
	assert.ErrorIs(t, err, ErrUnknownQuestion)

	require.NoError(t, svc.DeleteEvidence(ctx, "alice", "sec-2"))
	_, err = svc.GetEvidence(ctx, "alice", "sec-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrphansAndPurge(t *testing.T) {
	svc, s := newTestService(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, s.SetAnswer(ctx, "alice", "retired-1", 2))
	require.NoError(t, s.SetAnswer(ctx, "bob", "retired-1", 5))
	require.NoError(t, s.SetAnswer(ctx, "bob", "sec-1", 5))

	r, err := svc.Recompute(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Score.Answered, "orphans never count")

	orphans, err := svc.Orphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"alice": {"retired-1"}, "bob": {"retired-1"}}, orphans)

	n, err := svc.PurgeOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	orphans, err = svc.Orphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	answers, err := svc.Answers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 5, answers["sec-1"])
}

func TestUserScopedProgress(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.UpsertUser(ctx, &catalog.User{ID: "carol", AssignedQuestions: []string{"ops-1"}}))
	assert.Error(t, svc.UpsertUser(ctx, &catalog.User{ID: "dave", Role: "root"}))

	r, err := svc.SetAnswer(ctx, "carol", "ops-1", 2)
	require.NoError(t, err)
	require.NotNil(t, r.UserProgress)
	assert.Equal(t, 100, r.UserProgress.Percentage)
	assert.Equal(t, 33, r.Progress.Percentage)

	r, err = svc.Recompute(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, r.UserProgress)
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	fwPath := filepath.Join(dir, "frameworks.yaml")
	usersPath := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(fwPath, []byte(`
nist:
  name: NIST CSF
  enabled: true
  threshold: 3
  mappedQuestions: [sec-1, sec-2]
`), 0o644))
	require.NoError(t, os.WriteFile(usersPath, []byte(`{"alice": {"name": "Alice", "role": "admin"}}`), 0o644))

	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()
	src := &catalog.FileSource{FrameworksPath: fwPath, UsersPath: usersPath}

	require.NoError(t, svc.Seed(ctx, src))
	fws, err := svc.ListFrameworks(ctx)
	require.NoError(t, err)
	require.Len(t, fws, 1)
	assert.Equal(t, "nist", fws[0].ID)

	fws[0].Threshold = 4
	require.NoError(t, svc.UpsertFramework(ctx, &fws[0]))
	require.NoError(t, svc.Seed(ctx, src))

	got, err := svc.GetFramework(ctx, "nist")
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Threshold, "seed must not overwrite existing rows")

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, catalog.RoleAdmin, users[0].Role)
}

func TestExportStripsImageData(t *testing.T) {
	svc, s := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.SetAnswer(ctx, "alice", "sec-2", 5)
	require.NoError(t, err)
	require.NoError(t, s.SetAnswer(ctx, "alice", "retired-1", 1))
	_, err = svc.SaveEvidence(ctx, &store.Evidence{
		UserID: "alice", QuestionID: "sec-2",
		Images: []store.Image{{Name: "a.png", MimeType: "image/png", Data: []byte{1, 2, 3}}},
	}, false)
	require.NoError(t, err)

	exp, err := svc.Export(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"sec-2": 5}, map[string]int(exp.Answers))
	require.Len(t, exp.Evidence, 1)
	require.Len(t, exp.Evidence[0].Images, 1)
	assert.Nil(t, exp.Evidence[0].Images[0].Data)
	assert.Equal(t, "a.png", exp.Evidence[0].Images[0].Name)
	assert.Equal(t, []string{"retired-1"}, exp.Report.Orphans)
}

func TestReporterRunOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	h := &MockHermes{}
	h.On("Publish", mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.Anything).Return(nil)
	svc, s := newTestService(t, h, metrics)
	ctx := context.Background()

	require.NoError(t, s.SetAnswer(ctx, "alice", "sec-1", 5))
	require.NoError(t, s.SetAnswer(ctx, "alice", "ops-1", 5))
	require.NoError(t, s.SetAnswer(ctx, "bob", "ops-1", 1))

	n := NewReporter(svc, 0).RunOnce(ctx)
	assert.Equal(t, 2, n)

	assert.InDelta(t, 5.0, testutil.ToFloat64(metrics.overallScore.WithLabelValues("alice")), 0.001)
	assert.InDelta(t, 0.4, testutil.ToFloat64(metrics.overallScore.WithLabelValues("bob")), 0.001)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.recomputations))
	h.AssertCalled(t, "Publish", "maturity.score.bob.recomputed", mock.AnythingOfType("string"), mock.Anything)
}

func TestReporterStartIgnoresNonPositiveInterval(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	for _, interval := range []time.Duration{0, -time.Second} {
		r := NewReporter(svc, interval)
		assert.NotPanics(t, func() {
			r.Start(context.Background())
			r.Stop()
		})
	}
}

func TestReporterStartStop(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewReporter(svc, time.Hour)
	r.Start(ctx)
	r.Stop()
	r.Stop()
}
