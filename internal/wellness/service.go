// Package wellness is the consumer of the lower layers: it composes the
// normalized stores, validation, the optimistic engine, snapshots, the
// view cache, and the SSE broker into the tracker's public API.
package wellness

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/wunjo/internal/apperr"
	"github.com/starford/wunjo/internal/cache"
	"github.com/starford/wunjo/internal/models"
	"github.com/starford/wunjo/internal/optimistic"
	"github.com/starford/wunjo/internal/persist"
	"github.com/starford/wunjo/internal/sse"
	"github.com/starford/wunjo/internal/store"
	"github.com/starford/wunjo/internal/validate"
)

// viewKeysRe matches every cache key this service owns; ClearPattern with
// it invalidates all derived views after a committed mutation.
var viewKeysRe = regexp.MustCompile(`^(summary$|views\.)`)

const summaryCacheKey = "summary"

// Service exposes category/goal/entry CRUD with optimistic local state.
type Service struct {
	mu         sync.Mutex
	categories store.Store[models.Category]
	goals      store.Store[models.Goal]
	entries    store.Store[models.Entry]

	engine *optimistic.Engine
	db     *persist.DB
	cache  *cache.Cache
	broker *sse.Broker
	logger *slog.Logger

	summaryTTL time.Duration
	now        func() time.Time
	newID      func() string
}

// Option configures a Service.
type Option func(*Service)

// WithPersistence enables SQLite snapshots.
func WithPersistence(db *persist.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithCache enables the derived-view cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithBroker enables SSE change events.
func WithBroker(b *sse.Broker) Option {
	return func(s *Service) { s.broker = b }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDFunc overrides id generation (tests).
func WithIDFunc(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithSummaryTTL sets how long the cached summary view stays fresh.
func WithSummaryTTL(d time.Duration) Option {
	return func(s *Service) { s.summaryTTL = d }
}

// New creates a Service around the given optimistic engine.
func New(engine *optimistic.Engine, opts ...Option) *Service {
	s := &Service{
		categories: store.New[models.Category](),
		goals:      store.New[models.Goal](),
		entries:    store.New[models.Entry](),
		engine:     engine,
		logger:     slog.Default(),
		summaryTTL: 30 * time.Second,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate loads the persisted snapshots. Failures are logged and leave
// the corresponding store empty; startup never fails on snapshot state.
func (s *Service) Hydrate() {
	if s.db == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cats, err := persist.LoadSnapshot[models.Category](s.db, models.KindCategory, s.logger); err != nil {
		s.logger.Warn("hydrate categories failed", slog.String("error", err.Error()))
	} else {
		s.categories = cats
	}
	if goals, err := persist.LoadSnapshot[models.Goal](s.db, models.KindGoal, s.logger); err != nil {
		s.logger.Warn("hydrate goals failed", slog.String("error", err.Error()))
	} else {
		s.goals = goals
	}
	if entries, err := persist.LoadSnapshot[models.Entry](s.db, models.KindEntry, s.logger); err != nil {
		s.logger.Warn("hydrate entries failed", slog.String("error", err.Error()))
	} else {
		s.entries = entries
	}
}

// committed runs the post-commit side effects: snapshot, view
// invalidation, change event. All are best-effort.
func (s *Service) committed(event, id string, kinds ...string) {
	for _, kind := range kinds {
		s.persistKind(kind)
	}
	if s.cache != nil {
		s.cache.ClearPattern(viewKeysRe)
	}
	if s.broker != nil && len(kinds) > 0 {
		s.broker.PublishEntityEvent(kinds[0], event, id)
	}
}

func (s *Service) persistKind(kind string) {
	if s.db == nil {
		return
	}
	s.mu.Lock()
	cats, goals, entries := s.categories, s.goals, s.entries
	s.mu.Unlock()

	var err error
	switch kind {
	case models.KindCategory:
		err = persist.SaveSnapshot(s.db, kind, cats)
	case models.KindGoal:
		err = persist.SaveSnapshot(s.db, kind, goals)
	case models.KindEntry:
		err = persist.SaveSnapshot(s.db, kind, entries)
	}
	if err != nil {
		s.logger.Warn("snapshot write failed",
			slog.String("kind", kind), slog.String("error", err.Error()))
	}
}

func validationErr(res validate.Result) error {
	return &apperr.ValidationError{Messages: res.Errors}
}

// ---- Categories ----

// AddCategory creates a category, assigning an id when none is supplied.
func (s *Service) AddCategory(ctx context.Context, c models.Category) (models.Category, error) {
	if c.ID == "" {
		c.ID = s.newID()
	}
	if res := validate.Category(c); !res.OK {
		return models.Category{}, validationErr(res)
	}

	s.mu.Lock()
	exists := s.categories.Has(c.ID)
	s.mu.Unlock()
	if exists {
		return models.Category{}, fmt.Errorf("category %s: %w", c.ID, apperr.ErrAlreadyExists)
	}

	apply := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.categories = s.categories.Add(c)
		return nil
	}
	revert := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.categories = s.categories.Remove(c.ID)
	}
	if err := s.engine.Create(ctx, models.KindCategory, c.ID, apply, revert); err != nil {
		return models.Category{}, err
	}
	s.committed("created", c.ID, models.KindCategory)
	return c, nil
}

// CategoryPatch selects which category fields an update touches. Nil
// fields are left unchanged; Metrics replaces the whole metric list when
// non-nil.
type CategoryPatch struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
	Enabled     *bool
	Metrics     []models.Metric
}

func (p CategoryPatch) applyTo(c models.Category) models.Category {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.Metrics != nil {
		c.Metrics = p.Metrics
	}
	return c
}

// UpdateCategory merges patch into the category with the given id.
func (s *Service) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (models.Category, error) {
	s.mu.Lock()
	prev, ok := s.categories.Get(id)
	s.mu.Unlock()
	if !ok {
		return models.Category{}, fmt.Errorf("category %s: %w", id, apperr.ErrNotFound)
	}

	updated := patch.applyTo(prev)
	if res := validate.Category(updated); !res.OK {
		return models.Category{}, validationErr(res)
	}

	apply := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.categories = s.categories.Put(updated)
		return nil
	}
	revert := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.categories = s.categories.Put(prev)
	}
	if err := s.engine.Update(ctx, models.KindCategory, id, apply, revert); err != nil {
		return models.Category{}, err
	}
	s.committed("updated", id, models.KindCategory)
	return updated, nil
}

// RemoveCategory deletes a category and cascades to its goals.
func (s *Service) RemoveCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	prev, ok := s.categories.Get(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("category %s: %w", id, apperr.ErrNotFound)
	}
	pos := indexOf(s.categories.IDs(), id)
	dependents := s.goals.Filter(func(g models.Goal) bool { return g.CategoryID == id })
	s.mu.Unlock()

	apply := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.categories = s.categories.Remove(id)
		for _, g := range dependents {
			s.goals = s.goals.Remove(g.ID)
		}
		return nil
	}
	revert := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.categories = s.categories.InsertAt(prev, pos)
		for _, g := range dependents {
			s.goals = s.goals.Add(g)
		}
	}
	if err := s.engine.Delete(ctx, models.KindCategory, id, apply, revert); err != nil {
		return err
	}
	s.committed("deleted", id, models.KindCategory, models.KindGoal)
	return nil
}

// ReorderCategories moves the category at position from to position to.
func (s *Service) ReorderCategories(ctx context.Context, from, to int) error {
	s.mu.Lock()
	ids := s.categories.IDs()
	s.mu.Unlock()
	if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
		return fmt.Errorf("reorder out of range: from=%d to=%d len=%d", from, to, len(ids))
	}
	id := ids[from]

	apply := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		moved, err := s.categories.Reorder(from, to)
		if err != nil {
			return err
		}
		s.categories = moved
		return nil
	}
	revert := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if back, err := s.categories.Reorder(to, from); err == nil {
			s.categories = back
		}
	}
	if err := s.engine.Update(ctx, models.KindCategory, id, apply, revert); err != nil {
		return err
	}
	s.committed("updated", id, models.KindCategory)
	return nil
}

// ---- Goals ----

// SetGoal upserts the goal for (CategoryID, MetricID): an existing goal
// for the pair is updated in place, otherwise a new one is created.
func (s *Service) SetGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	if res := validate.Goal(g); !res.OK {
		return models.Goal{}, validationErr(res)
	}

	s.mu.Lock()
	cat, ok := s.categories.Get(g.CategoryID)
	if !ok {
		s.mu.Unlock()
		return models.Goal{}, fmt.Errorf("category %s: %w", g.CategoryID, apperr.ErrNotFound)
	}
	if _, ok := cat.Metric(g.MetricID); !ok {
		s.mu.Unlock()
		return models.Goal{}, fmt.Errorf("metric %s in category %s: %w", g.MetricID, g.CategoryID, apperr.ErrNotFound)
	}
	existing, found := s.goalForLocked(g.CategoryID, g.MetricID)
	s.mu.Unlock()

	if found {
		g.ID = existing.ID
		apply := func() error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.goals = s.goals.Put(g)
			return nil
		}
		revert := func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.goals = s.goals.Put(existing)
		}
		if err := s.engine.Update(ctx, models.KindGoal, g.ID, apply, revert); err != nil {
			return models.Goal{}, err
		}
		s.committed("updated", g.ID, models.KindGoal)
		return g, nil
	}

	if g.ID == "" {
		g.ID = s.newID()
	}
	apply := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.goals = s.goals.Add(g)
		return nil
	}
	revert := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.goals = s.goals.Remove(g.ID)
	}
	if err := s.engine.Create(ctx, models.KindGoal, g.ID, apply, revert); err != nil {
		return models.Goal{}, err
	}
	s.committed("created", g.ID, models.KindGoal)
	return g, nil
}

// UpdateGoals upserts a set of goals as one batched optimistic mutation
// with per-goal rollback granularity.
func (s *Service) UpdateGoals(ctx context.Context, goals []models.Goal) error {
	if res := validate.Goals(goals); !res.OK {
		return validationErr(res)
	}

	// Collapse repeated (category, metric) pairs, keeping the last value.
	// Each pair resolves to one goal id, so committing duplicates would
	// either double the pair or double-begin the same id in the batch.
	byPair := make(map[[2]string]int, len(goals))
	deduped := make([]models.Goal, 0, len(goals))
	for _, g := range goals {
		key := [2]string{g.CategoryID, g.MetricID}
		if i, ok := byPair[key]; ok {
			deduped[i] = g
			continue
		}
		byPair[key] = len(deduped)
		deduped = append(deduped, g)
	}
	goals = deduped

	ops := make([]optimistic.BatchOp, 0, len(goals))
	ids := make([]string, 0, len(goals))
	s.mu.Lock()
	for i := range goals {
		g := goals[i]
		if !s.categories.Has(g.CategoryID) {
			s.mu.Unlock()
			return fmt.Errorf("goal %d: category %s: %w", i, g.CategoryID, apperr.ErrNotFound)
		}
		existing, found := s.goalForLocked(g.CategoryID, g.MetricID)
		if found {
			g.ID = existing.ID
		} else if g.ID == "" {
			g.ID = s.newID()
		}
		prev, had := existing, found
		ops = append(ops, optimistic.BatchOp{
			ID: g.ID,
			Apply: func() error {
				s.mu.Lock()
				defer s.mu.Unlock()
				s.goals = s.goals.Put(g)
				return nil
			},
			Revert: func() {
				s.mu.Lock()
				defer s.mu.Unlock()
				if had {
					s.goals = s.goals.Put(prev)
				} else {
					s.goals = s.goals.Remove(g.ID)
				}
			},
		})
		ids = append(ids, g.ID)
	}
	s.mu.Unlock()

	if err := s.engine.Batch(ctx, models.KindGoal, ops); err != nil {
		return err
	}
	s.persistKind(models.KindGoal)
	if s.cache != nil {
		s.cache.ClearPattern(viewKeysRe)
	}
	if s.broker != nil {
		for _, id := range ids {
			s.broker.PublishEntityEvent(models.KindGoal, "updated", id)
		}
	}
	return nil
}

// goalForLocked finds the goal for a (category, metric) pair. Caller
// holds s.mu.
func (s *Service) goalForLocked(categoryID, metricID string) (models.Goal, bool) {
	hits := s.goals.Filter(func(g models.Goal) bool {
		return g.CategoryID == categoryID && g.MetricID == metricID
	})
	if len(hits) == 0 {
		return models.Goal{}, false
	}
	return hits[0], true
}

// GoalFor returns the goal for a (category, metric) pair, if one exists.
func (s *Service) GoalFor(categoryID, metricID string) (models.Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goalForLocked(categoryID, metricID)
}

// ---- Entries ----

// AddEntry records a tracking entry. The referenced category (and metric,
// when given) must exist.
func (s *Service) AddEntry(ctx context.Context, e models.Entry) (models.Entry, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	now := s.now()
	e.CreatedAt = now
	e.UpdatedAt = now
	if res := validate.Entry(e); !res.OK {
		return models.Entry{}, validationErr(res)
	}

	s.mu.Lock()
	cat, ok := s.categories.Get(e.CategoryID)
	if !ok {
		s.mu.Unlock()
		return models.Entry{}, fmt.Errorf("category %s: %w", e.CategoryID, apperr.ErrNotFound)
	}
	if e.MetricID != "" {
		if _, ok := cat.Metric(e.MetricID); !ok {
			s.mu.Unlock()
			return models.Entry{}, fmt.Errorf("metric %s in category %s: %w", e.MetricID, e.CategoryID, apperr.ErrNotFound)
		}
	}
	exists := s.entries.Has(e.ID)
	s.mu.Unlock()
	if exists {
		return models.Entry{}, fmt.Errorf("entry %s: %w", e.ID, apperr.ErrAlreadyExists)
	}

	apply := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = s.entries.Add(e)
		return nil
	}
	revert := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = s.entries.Remove(e.ID)
	}
	if err := s.engine.Create(ctx, models.KindEntry, e.ID, apply, revert); err != nil {
		return models.Entry{}, err
	}
	s.committed("created", e.ID, models.KindEntry)
	return e, nil
}

// EntryPatch selects which entry fields an update touches. Identity
// fields (id, category, metric, created-at) are immutable.
type EntryPatch struct {
	Date     *string
	Duration *int
	Value    *float64
	Notes    *string
}

func (p EntryPatch) applyTo(e models.Entry) models.Entry {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.Value != nil {
		e.Value = *p.Value
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	return e
}

// UpdateEntry merges patch into the entry with the given id.
func (s *Service) UpdateEntry(ctx context.Context, id string, patch EntryPatch) (models.Entry, error) {
	s.mu.Lock()
	prev, ok := s.entries.Get(id)
	s.mu.Unlock()
	if !ok {
		return models.Entry{}, fmt.Errorf("entry %s: %w", id, apperr.ErrNotFound)
	}

	updated := patch.applyTo(prev)
	updated.UpdatedAt = s.now()
	if res := validate.Entry(updated); !res.OK {
		return models.Entry{}, validationErr(res)
	}

	apply := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = s.entries.Put(updated)
		return nil
	}
	revert := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = s.entries.Put(prev)
	}
	if err := s.engine.Update(ctx, models.KindEntry, id, apply, revert); err != nil {
		return models.Entry{}, err
	}
	s.committed("updated", id, models.KindEntry)
	return updated, nil
}

// RemoveEntry deletes an entry.
func (s *Service) RemoveEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	prev, ok := s.entries.Get(id)
	pos := indexOf(s.entries.IDs(), id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("entry %s: %w", id, apperr.ErrNotFound)
	}

	apply := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = s.entries.Remove(id)
		return nil
	}
	revert := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = s.entries.InsertAt(prev, pos)
	}
	if err := s.engine.Delete(ctx, models.KindEntry, id, apply, revert); err != nil {
		return err
	}
	s.committed("deleted", id, models.KindEntry)
	return nil
}

// ---- Views ----

// Categories returns the ordered category list.
func (s *Service) Categories() []models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories.Items()
}

// Goals returns all goals.
func (s *Service) Goals() []models.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goals.Items()
}

// Entries returns all entries in insertion order.
func (s *Service) Entries() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Items()
}

// IsPending reports whether any mutation is in flight for the entity
// with the given id, regardless of kind.
func (s *Service) IsPending(id string) bool { return s.engine.Pending(id) }

// IsPendingCategory reports whether a category mutation is in flight.
func (s *Service) IsPendingCategory(id string) bool { return s.IsPending(id) }

// IsPendingGoal reports whether a goal mutation is in flight.
func (s *Service) IsPendingGoal(id string) bool { return s.IsPending(id) }

// IsPendingEntry reports whether an entry mutation is in flight.
func (s *Service) IsPendingEntry(id string) bool { return s.IsPending(id) }

// CategorySummary is the per-category aggregate shown on the dashboard.
type CategorySummary struct {
	CategoryID    string  `json:"category_id"`
	Name          string  `json:"name"`
	Goals         int     `json:"goals"`
	Entries       int     `json:"entries"`
	TotalDuration int     `json:"total_duration_min"`
	TotalValue    float64 `json:"total_value"`
}

// Summary is the denormalized dashboard view.
type Summary struct {
	Categories  []CategorySummary `json:"categories"`
	Entries     int               `json:"entries"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Summary computes (or serves from cache) the dashboard aggregate.
func (s *Service) Summary() Summary {
	if s.cache != nil {
		if v, ok := s.cache.Get(summaryCacheKey); ok {
			return v.(Summary)
		}
	}

	s.mu.Lock()
	sum := Summary{GeneratedAt: s.now(), Entries: s.entries.Len()}
	byCat := make(map[string]*CategorySummary)
	ordered := s.categories.IDs()
	for _, c := range s.categories.Items() {
		byCat[c.ID] = &CategorySummary{CategoryID: c.ID, Name: c.Name}
	}
	for _, g := range s.goals.Items() {
		if cs, ok := byCat[g.CategoryID]; ok {
			cs.Goals++
		}
	}
	for _, e := range s.entries.Items() {
		if cs, ok := byCat[e.CategoryID]; ok {
			cs.Entries++
			cs.TotalDuration += e.Duration
			cs.TotalValue += e.Value
		}
	}
	for _, id := range ordered {
		sum.Categories = append(sum.Categories, *byCat[id])
	}
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.Set(summaryCacheKey, sum, s.summaryTTL)
	}
	return sum
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
