package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
	"github.com/MikeSquared-Agency/Maturity/internal/hermes"
	"github.com/MikeSquared-Agency/Maturity/internal/scoring"
	"github.com/MikeSquared-Agency/Maturity/internal/store"
)

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrInvalidRating   = store.ErrInvalidRating
)

// Service is the stateful shell around the scoring engine. The catalog is
// loaded once and treated as read-only.
type Service struct {
	catalog *catalog.Catalog
	store   store.Store
	hermes  hermes.Client
	scorer  *scoring.Scorer
	metrics *Metrics
	logger  *slog.Logger
}

// Options carries the optional collaborators; zero values disable them.
type Options struct {
	Hermes  hermes.Client
	Metrics *Metrics
	Weights scoring.WeightSet
	// NormalizeWeights divides configured weights by their sum.
	NormalizeWeights bool
}

func NewService(c *catalog.Catalog, s store.Store, opts Options, logger *slog.Logger) *Service {
	svc := &Service{
		catalog: c,
		store:   s,
		hermes:  opts.Hermes,
		scorer:  scoring.NewScorer(opts.Weights, opts.NormalizeWeights),
		metrics: opts.Metrics,
		logger:  logger,
	}
	svc.warnWeights()
	return svc
}

func (s *Service) warnWeights() {
	w := s.scorer.Weights(s.catalog)
	if err := w.Validate(); err != nil {
		s.logger.Warn("domain weights do not validate, scores are computed as configured", "error", err, "sum", w.Sum())
	}
	if missing := w.Missing(s.catalog); len(missing) > 0 {
		s.logger.Warn("domains without weight contribute 0 to the overall score", "domains", missing)
	}
}

func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Weights reports the effective domain weights.
func (s *Service) Weights() scoring.WeightSet { return s.scorer.Weights(s.catalog) }

// Seed loads frameworks and users from src when the corresponding tables are
// empty. Existing rows are never overwritten.
func (s *Service) Seed(ctx context.Context, src catalog.Source) error {
	existing, err := s.store.ListFrameworks(ctx)
	if err != nil {
		return fmt.Errorf("list frameworks: %w", err)
	}
	if len(existing) == 0 {
		fws, err := src.LoadFrameworks(ctx)
		if err != nil {
			return fmt.Errorf("load frameworks: %w", err)
		}
		for i := range fws {
			if err := s.store.UpsertFramework(ctx, &fws[i]); err != nil {
				return fmt.Errorf("seed framework %s: %w", fws[i].ID, err)
			}
		}
		if len(fws) > 0 {
			s.logger.Info("seeded frameworks", "count", len(fws))
		}
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		seed, err := src.LoadUsers(ctx)
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		for i := range seed {
			if err := s.store.UpsertUser(ctx, &seed[i]); err != nil {
				return fmt.Errorf("seed user %s: %w", seed[i].ID, err)
			}
		}
		if len(seed) > 0 {
			s.logger.Info("seeded users", "count", len(seed))
		}
	}
	return nil
}

// Snapshot loads everything one recomputation for userID needs.
func (s *Service) Snapshot(ctx context.Context, userID string) (State, error) {
	answers, err := s.store.GetAnswers(ctx, userID)
	if err != nil {
		return State{}, fmt.Errorf("get answers: %w", err)
	}
	fws, err := s.store.ListFrameworks(ctx)
	if err != nil {
		return State{}, fmt.Errorf("list frameworks: %w", err)
	}
	st := State{Catalog: s.catalog, Answers: answers, Frameworks: fws}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return State{}, fmt.Errorf("get user: %w", err)
	}
	if u != nil {
		st.Assigned = u.AssignedQuestions
		if st.Assigned == nil {
			st.Assigned = []string{}
		}
	}
	return st, nil
}

func (s *Service) evidenced(ctx context.Context, userID string) (map[string]bool, error) {
	evs, err := s.store.ListEvidence(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	out := make(map[string]bool, len(evs))
	for _, ev := range evs {
		out[ev.QuestionID] = true
	}
	return out, nil
}

// Recompute runs a full evaluation for userID from freshly loaded state.
func (s *Service) Recompute(ctx context.Context, userID string) (*Report, error) {
	start := time.Now()
	st, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	ev, err := s.evidenced(ctx, userID)
	if err != nil {
		return nil, err
	}

	r := Evaluate(st, s.scorer, ev)
	r.UserID = userID
	s.metrics.observeRecompute(userID, time.Since(start).Seconds(), &r)
	if len(r.Orphans) > 0 {
		s.logger.Debug("ignoring answers for unknown questions", "user_id", userID, "questions", r.Orphans)
	}
	return &r, nil
}

func (s *Service) publishScore(ctx context.Context, r *Report) {
	if s.hermes == nil {
		return
	}
	evt := hermes.ScoreEvent{
		EventID:        uuid.New(),
		UserID:         r.UserID,
		Overall:        r.Score.Overall,
		MaturityLevel:  r.Score.MaturityLevel,
		DomainScores:   r.Score.DomainScores,
		Answered:       r.Score.Answered,
		Total:          r.Score.Total,
		ComplianceRate: r.Compliance.ComplianceRate,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.hermes.Publish(ctx, hermes.SubjectScoreRecomputed(r.UserID), evt.EventID.String(), evt); err != nil {
		s.logger.Warn("failed to publish score event", "user_id", r.UserID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, subject string, evt interface{}, id uuid.UUID) {
	if s.hermes == nil {
		return
	}
	if err := s.hermes.Publish(ctx, subject, id.String(), evt); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// Answers returns the user's stored answers, orphans included.
func (s *Service) Answers(ctx context.Context, userID string) (scoring.Answers, error) {
	return s.store.GetAnswers(ctx, userID)
}

// SetAnswer records a rating and returns the recomputed report.
func (s *Service) SetAnswer(ctx context.Context, userID, questionID string, rating int) (*Report, error) {
	if !s.catalog.Has(questionID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if !scoring.ValidRating(rating) {
		return nil, ErrInvalidRating
	}
	if err := s.store.SetAnswer(ctx, userID, questionID, rating); err != nil {
		return nil, fmt.Errorf("set answer: %w", err)
	}
	s.metrics.observeMutation(IntentSet)

	evt := hermes.AnswerEvent{EventID: uuid.New(), UserID: userID, QuestionID: questionID, Rating: rating, Timestamp: time.Now().UTC()}
	s.publish(ctx, hermes.SubjectAnswerSet(userID), evt, evt.EventID)

	return s.afterMutation(ctx, userID)
}

// ClearAnswer removes a rating. Clearing an unanswered question is not an error.
func (s *Service) ClearAnswer(ctx context.Context, userID, questionID string) (*Report, error) {
	if err := s.store.ClearAnswer(ctx, userID, questionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("clear answer: %w", err)
	}
	s.metrics.observeMutation(IntentClear)

	evt := hermes.AnswerEvent{EventID: uuid.New(), UserID: userID, QuestionID: questionID, Timestamp: time.Now().UTC()}
	s.publish(ctx, hermes.SubjectAnswerCleared(userID), evt, evt.EventID)

	return s.afterMutation(ctx, userID)
}

// SelectAnswer applies the click policy to a rating choice.
func (s *Service) SelectAnswer(ctx context.Context, userID, questionID string, rating int) (Intent, *Report, error) {
	current, err := s.store.GetAnswers(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("get answers: %w", err)
	}
	intent := Select(current, questionID, rating)
	var r *Report
	switch intent {
	case IntentClear:
		r, err = s.ClearAnswer(ctx, userID, questionID)
	default:
		r, err = s.SetAnswer(ctx, userID, questionID, rating)
	}
	return intent, r, err
}

func (s *Service) afterMutation(ctx context.Context, userID string) (*Report, error) {
	r, err := s.Recompute(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.publishScore(ctx, r)
	return r, nil
}

// SaveEvidence stores evidence for an answered or unanswered catalog question.
func (s *Service) SaveEvidence(ctx context.Context, ev *store.Evidence, mergeImages bool) (*store.Evidence, error) {
	if !s.catalog.Has(ev.QuestionID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, ev.QuestionID)
	}
	if err := s.store.SaveEvidence(ctx, ev, mergeImages); err != nil {
		return nil, fmt.Errorf("save evidence: %w", err)
	}
	saved, err := s.store.GetEvidence(ctx, ev.UserID, ev.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("reload evidence: %w", err)
	}
	if saved == nil {
		saved = ev
	}

	evt := hermes.EvidenceEvent{EventID: uuid.New(), UserID: ev.UserID, QuestionID: ev.QuestionID, ImageCount: len(saved.Images), Timestamp: time.Now().UTC()}
	s.publish(ctx, hermes.SubjectEvidenceSaved(ev.UserID), evt, evt.EventID)
	return saved, nil
}

// GetEvidence returns store.ErrNotFound when nothing was saved.
func (s *Service) GetEvidence(ctx context.Context, userID, questionID string) (*store.Evidence, error) {
	ev, err := s.store.GetEvidence(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, store.ErrNotFound
	}
	return ev, nil
}

func (s *Service) ListEvidence(ctx context.Context, userID string) ([]*store.Evidence, error) {
	return s.store.ListEvidence(ctx, userID)
}

func (s *Service) DeleteEvidence(ctx context.Context, userID, questionID string) error {
	if err := s.store.DeleteEvidence(ctx, userID, questionID); err != nil {
		return err
	}
	evt := hermes.EvidenceEvent{EventID: uuid.New(), UserID: userID, QuestionID: questionID, Timestamp: time.Now().UTC()}
	s.publish(ctx, hermes.SubjectEvidenceDeleted(userID), evt, evt.EventID)
	return nil
}

// EvidenceGaps lists the user's answered questions that still need evidence.
func (s *Service) EvidenceGaps(ctx context.Context, userID string) ([]string, error) {
	answers, err := s.store.GetAnswers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	ev, err := s.evidenced(ctx, userID)
	if err != nil {
		return nil, err
	}
	gaps := EvidenceGaps(s.catalog, answers, ev)
	if gaps == nil {
		gaps = []string{}
	}
	return gaps, nil
}

func (s *Service) ListFrameworks(ctx context.Context) ([]catalog.Framework, error) {
	return s.store.ListFrameworks(ctx)
}

func (s *Service) GetFramework(ctx context.Context, id string) (*catalog.Framework, error) {
	fw, err := s.store.GetFramework(ctx, id)
	if err != nil {
		return nil, err
	}
	if fw == nil {
		return nil, store.ErrNotFound
	}
	return fw, nil
}

// UpsertFramework validates and stores a framework. Mapped question IDs that
// are not in the catalog are accepted and only logged; they never count.
func (s *Service) UpsertFramework(ctx context.Context, fw *catalog.Framework) error {
	if err := fw.Validate(); err != nil {
		return err
	}
	var unknown []string
	for _, qid := range fw.MappedQuestions {
		if !s.catalog.Has(qid) {
			unknown = append(unknown, qid)
		}
	}
	if len(unknown) > 0 {
		s.logger.Warn("framework maps questions missing from the catalog", "framework_id", fw.ID, "questions", unknown)
	}
	if err := s.store.UpsertFramework(ctx, fw); err != nil {
		return fmt.Errorf("upsert framework: %w", err)
	}
	evt := hermes.FrameworkEvent{EventID: uuid.New(), FrameworkID: fw.ID, Enabled: fw.Enabled, Timestamp: time.Now().UTC()}
	s.publish(ctx, hermes.SubjectFrameworkUpdated(fw.ID), evt, evt.EventID)
	return nil
}

func (s *Service) DeleteFramework(ctx context.Context, id string) error {
	if err := s.store.DeleteFramework(ctx, id); err != nil {
		return err
	}
	evt := hermes.FrameworkEvent{EventID: uuid.New(), FrameworkID: id, Timestamp: time.Now().UTC()}
	s.publish(ctx, hermes.SubjectFrameworkDeleted(id), evt, evt.EventID)
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]catalog.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) UpsertUser(ctx context.Context, u *catalog.User) error {
	if u.Role == "" {
		u.Role = catalog.RoleUser
	}
	if u.Role != catalog.RoleAdmin && u.Role != catalog.RoleUser {
		return fmt.Errorf("%w: unknown role %q", catalog.ErrInvalidCatalog, u.Role)
	}
	return s.store.UpsertUser(ctx, u)
}

// Orphans maps user ID to answered question IDs that the catalog no longer has.
func (s *Service) Orphans(ctx context.Context) (map[string][]string, error) {
	all, err := s.store.AllAnswers(ctx)
	if err != nil {
		return nil, fmt.Errorf("all answers: %w", err)
	}
	out := make(map[string][]string)
	for userID, answers := range all {
		if ids := Orphans(s.catalog, answers); len(ids) > 0 {
			out[userID] = ids
		}
	}
	return out, nil
}

// PurgeOrphans deletes every orphan answer and reports how many went.
func (s *Service) PurgeOrphans(ctx context.Context) (int64, error) {
	orphans, err := s.Orphans(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, qs := range orphans {
		for _, q := range qs {
			if !seen[q] {
				seen[q] = true
				ids = append(ids, q)
			}
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.store.DeleteAnswers(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete answers: %w", err)
	}
	s.logger.Info("purged orphan answers", "questions", len(ids), "rows", n)
	return n, nil
}

// Export is the single document handed to report renderers.
type Export struct {
	UserID      string            `json:"user_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Answers     scoring.Answers   `json:"answers"`
	Evidence    []*store.Evidence `json:"evidence"`
	Report      *Report           `json:"report"`
}

// Export gathers answers, evidence metadata and a fresh report. Image bytes
// are stripped.
func (s *Service) Export(ctx context.Context, userID string) (*Export, error) {
	r, err := s.Recompute(ctx, userID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.GetAnswers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	evs, err := s.store.ListEvidence(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	for _, ev := range evs {
		for i := range ev.Images {
			ev.Images[i].Data = nil
		}
	}
	if evs == nil {
		evs = []*store.Evidence{}
	}
	return &Export{
		UserID:      userID,
		GeneratedAt: time.Now().UTC(),
		Answers:     answers.Known(s.catalog),
		Evidence:    evs,
		Report:      r,
	}, nil
}
