// Package workspace provisions and manages per-session filesystem workspaces.
//
// Each session gets its own directory under a base directory. The session's
// shared_skills entry either links to a global skills root or holds an
// independent copy of it, and can be converted between the two while other
// sessions keep working. A Manager owns the in-memory registry of sessions;
// filesystem work for different sessions runs in parallel while work for the
// same session is serialised.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/telemetry"
	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

// Config holds the settings of a Manager
type Config struct {
	BaseDir            string        // directory holding every session-<id> workspace
	GlobalSkillsDir    string        // global skills root shared by symlinked sessions
	PremiumTiers       []string      // tiers resolved to the copy strategy
	AverageSkillsSize  int64         // bytes, used by the disk usage estimate
	IgnorePatterns     []string      // opt-in doublestar patterns ignored when looking for custom skills
	SweepConcurrency   int           // parallel deletions during a sweep
	SweepRetryAttempts uint          // attempts per workspace deletion
	SweepRetryDelay    time.Duration // delay between deletion attempts

	DefaultSkillsManifest string            // optional manifest of skills seeded into the global root on reset
	DefaultSkillsSources  map[string]string // manifest source name to the directory holding its skills
}

// DefaultAverageSkillsSize is the assumed size of one copy of the global skills
const DefaultAverageSkillsSize int64 = 15 * 1024 * 1024

// DefaultConfig returns the configuration rooted at ~/.openclaw
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to get user home directory")
	}
	return Config{
		BaseDir:            filepath.Join(home, ".openclaw", "workspaces"),
		GlobalSkillsDir:    filepath.Join(home, ".openclaw", "shared_skills"),
		PremiumTiers:       DefaultPremiumTiers,
		AverageSkillsSize:  DefaultAverageSkillsSize,
		SweepConcurrency:   4,
		SweepRetryAttempts: 3,
		SweepRetryDelay:    200 * time.Millisecond,
	}, nil
}

func (c *Config) normalize() error {
	if c.BaseDir == "" {
		return errors.New("base directory is required")
	}
	if c.GlobalSkillsDir == "" {
		return errors.New("global skills directory is required")
	}

	var err error
	if c.BaseDir, err = filepath.Abs(c.BaseDir); err != nil {
		return errors.Wrap(err, "failed to resolve base directory")
	}
	if c.GlobalSkillsDir, err = filepath.Abs(c.GlobalSkillsDir); err != nil {
		return errors.Wrap(err, "failed to resolve global skills directory")
	}

	if c.DefaultSkillsManifest != "" {
		if c.DefaultSkillsManifest, err = filepath.Abs(c.DefaultSkillsManifest); err != nil {
			return errors.Wrap(err, "failed to resolve default skills manifest")
		}
	}

	if c.AverageSkillsSize <= 0 {
		c.AverageSkillsSize = DefaultAverageSkillsSize
	}
	if c.SweepConcurrency <= 0 {
		c.SweepConcurrency = 1
	}
	if c.SweepRetryAttempts == 0 {
		c.SweepRetryAttempts = 1
	}
	return nil
}

// Option configures a Manager
type Option func(*Manager)

// WithStore persists records through store
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithResolver replaces the strategy resolver built from Config.PremiumTiers
func WithResolver(r *Resolver) Option {
	return func(m *Manager) {
		m.resolver = r
	}
}

// WithObserver reports lifecycle events to o
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithFileLocks serialises same-session operations across processes using
// lock files under <BaseDir>/.locks
func WithFileLocks() Option {
	return func(m *Manager) {
		m.locks.lockDir = filepath.Join(m.cfg.BaseDir, lockDirName)
	}
}

// Manager is the session registry. It is safe for concurrent use.
type Manager struct {
	cfg      Config
	resolver *Resolver
	store    Store
	observer Observer
	now      func() time.Time
	locks    *sessionLocks

	mu       sync.RWMutex
	sessions map[string]*workspaces.Record
	marked   map[string]bool

	installMu sync.Mutex
}

// NewManager validates cfg, creates the base directory and returns an empty registry
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.BaseDir, dirPerm); err != nil {
		return nil, ioError("mkdir", cfg.BaseDir, err)
	}

	m := &Manager{
		cfg:      cfg,
		observer: noopObserver{},
		now:      time.Now,
		locks:    newSessionLocks(),
		sessions: make(map[string]*workspaces.Record),
		marked:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.resolver == nil {
		m.resolver = NewResolver(cfg.PremiumTiers...)
	}
	return m, nil
}

// Config returns the normalized configuration
func (m *Manager) Config() Config {
	return m.cfg
}

// GetOrCreate returns the workspace of sessionID, provisioning it on first use.
// An existing record only has its LastUsedAt refreshed; its strategy never
// changes here. A new record is visible to other callers only once its
// workspace is fully provisioned.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string, profile workspaces.Profile) (workspaces.Record, error) {
	var record workspaces.Record
	err := telemetry.WithSpan(ctx, "workspace.get_or_create", func(ctx context.Context) error {
		if err := ValidateSessionID(sessionID); err != nil {
			return err
		}
		ctx = logger.WithSession(ctx, sessionID)

		unlock, err := m.locks.lock(sessionID)
		if err != nil {
			return err
		}
		defer unlock()

		if existing, ok := m.touch(sessionID); ok {
			m.persist(ctx, existing)
			record = existing
			return nil
		}

		record, err = m.create(ctx, sessionID, profile)
		return err
	}, attribute.String("session.id", sessionID))
	return record, err
}

func (m *Manager) create(ctx context.Context, sessionID string, profile workspaces.Profile) (workspaces.Record, error) {
	m.mu.RLock()
	strategy := m.resolver.Resolve(sessionID, profile, m.marked)
	explicit := m.marked[sessionID]
	m.mu.RUnlock()

	path := workspacePath(m.cfg.BaseDir, sessionID)
	log := logger.G(ctx).WithFields(logrus.Fields{
		"path":     path,
		"strategy": strategy.String(),
	})

	now := m.now()
	if err := provision(path, now); err != nil {
		return workspaces.Record{}, errors.Wrapf(err, "failed to provision workspace for session %s", sessionID)
	}
	res, err := Materialize(ctx, filepath.Join(path, SharedSkillsDir), m.cfg.GlobalSkillsDir, strategy)
	if err != nil {
		return workspaces.Record{}, errors.Wrapf(err, "failed to set up skills for session %s", sessionID)
	}
	if res.Fallback {
		log.Warn("shared_skills fell back to an empty directory")
	}

	record := workspaces.Record{
		SessionID:          sessionID,
		Path:               path,
		Strategy:           strategy,
		Profile:            profile.Clone(),
		CustomSkillsMarked: explicit,
		CreatedAt:          now,
		LastUsedAt:         now,
	}

	m.mu.Lock()
	stored := record.Clone()
	m.sessions[sessionID] = &stored
	m.mu.Unlock()

	m.persist(ctx, record)
	m.observer.SessionCreated(strategy)
	log.Info("workspace initialized")
	return record, nil
}

// Get returns a copy of the record of sessionID without refreshing LastUsedAt
func (m *Manager) Get(sessionID string) (workspaces.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return workspaces.Record{}, errors.Wrapf(ErrSessionNotFound, "%s", sessionID)
	}
	return rec.Clone(), nil
}

// Touch refreshes LastUsedAt of sessionID
func (m *Manager) Touch(ctx context.Context, sessionID string) error {
	rec, ok := m.touch(sessionID)
	if !ok {
		return errors.Wrapf(ErrSessionNotFound, "%s", sessionID)
	}
	m.persist(ctx, rec)
	return nil
}

func (m *Manager) touch(sessionID string) (workspaces.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return workspaces.Record{}, false
	}
	rec.LastUsedAt = m.now()
	return rec.Clone(), true
}

// ListSessions returns a snapshot of every record ordered by creation time
func (m *Manager) ListSessions() []workspaces.Record {
	m.mu.RLock()
	records := make([]workspaces.Record, 0, len(m.sessions))
	for _, rec := range m.sessions {
		records = append(records, rec.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].SessionID < records[j].SessionID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

// MarkCustom flags sessionID as needing independent skills. It decides the
// strategy of a session that has not been created yet; existing sessions keep
// their strategy until converted explicitly.
func (m *Manager) MarkCustom(sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	m.marked[sessionID] = true
	m.mu.Unlock()
	return nil
}

// IsMarked reports whether sessionID is flagged as needing independent skills
func (m *Manager) IsMarked(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marked[sessionID]
}

// Remove deletes the workspace of sessionID and forgets the session
func (m *Manager) Remove(ctx context.Context, sessionID string) error {
	return telemetry.WithSpan(ctx, "workspace.remove", func(ctx context.Context) error {
		ctx = logger.WithSession(ctx, sessionID)
		if _, err := m.Get(sessionID); err != nil {
			return err
		}
		unlock, err := m.locks.lock(sessionID)
		if err != nil {
			return err
		}
		defer unlock()

		rec, err := m.Get(sessionID)
		if err != nil {
			return err
		}
		if err := m.removeTree(rec.Path); err != nil {
			return err
		}
		m.forget(ctx, sessionID)
		logger.G(ctx).Info("workspace removed")
		return nil
	}, attribute.String("session.id", sessionID))
}

// update applies fn to the live record of sessionID and returns a copy of the result
func (m *Manager) update(ctx context.Context, sessionID string, fn func(*workspaces.Record)) (workspaces.Record, error) {
	m.mu.Lock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return workspaces.Record{}, errors.Wrapf(ErrSessionNotFound, "%s", sessionID)
	}
	fn(rec)
	if rec.CustomSkillsMarked {
		m.marked[sessionID] = true
	} else {
		delete(m.marked, sessionID)
	}
	updated := rec.Clone()
	m.mu.Unlock()

	m.persist(ctx, updated)
	return updated, nil
}

func (m *Manager) forget(ctx context.Context, sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	delete(m.marked, sessionID)
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	if err := m.store.Delete(ctx, sessionID); err != nil {
		logger.G(ctx).WithError(err).WithField("session_id", sessionID).Warn("failed to delete persisted workspace record")
	}
}

func (m *Manager) persist(ctx context.Context, rec workspaces.Record) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, rec); err != nil {
		logger.G(ctx).WithError(err).WithField("session_id", rec.SessionID).Warn("failed to persist workspace record")
	}
}

// Load reconciles the registry with the configured store, so that processes
// sharing one store see each other's work. A persisted record replaces the
// in-memory one unless the latter was used more recently. Records whose
// workspace directory no longer exists are dropped, and sessions the store no
// longer lists are forgotten once their directory is gone. It returns the
// number of sessions added or changed.
func (m *Manager) Load(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	records, err := m.store.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list persisted workspaces")
	}

	persisted := make(map[string]bool, len(records))
	loaded := 0
	for _, rec := range records {
		persisted[rec.SessionID] = true
		changed, err := m.reconcile(ctx, rec)
		if err != nil {
			return loaded, err
		}
		if changed {
			loaded++
		}
	}

	var unlisted []string
	m.mu.RLock()
	for id := range m.sessions {
		if !persisted[id] {
			unlisted = append(unlisted, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range unlisted {
		if err := m.dropVanished(ctx, id); err != nil {
			return loaded, err
		}
	}
	return loaded, nil
}

// reconcile applies one persisted record under its session lock and reports
// whether the registry changed
func (m *Manager) reconcile(ctx context.Context, rec workspaces.Record) (bool, error) {
	ctx = logger.WithSession(ctx, rec.SessionID)
	log := logger.G(ctx)
	if ValidateSessionID(rec.SessionID) != nil || rec.Path != workspacePath(m.cfg.BaseDir, rec.SessionID) {
		log.Warn("ignoring persisted workspace outside the base directory")
		return false, nil
	}

	unlock, err := m.locks.lock(rec.SessionID)
	if err != nil {
		return false, err
	}
	defer unlock()

	if state, err := probe(rec.Path); err != nil || state != PathDirectory {
		log.Info("dropping persisted workspace whose directory is gone")
		m.forget(ctx, rec.SessionID)
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.sessions[rec.SessionID]; ok {
		if current.LastUsedAt.After(rec.LastUsedAt) {
			return false, nil
		}
		// the profile is fixed at creation, other processes only change these
		if current.LastUsedAt.Equal(rec.LastUsedAt) && current.Strategy == rec.Strategy &&
			current.CustomSkillsMarked == rec.CustomSkillsMarked {
			return false, nil
		}
	}
	stored := rec.Clone()
	m.sessions[rec.SessionID] = &stored
	if rec.CustomSkillsMarked {
		m.marked[rec.SessionID] = true
	} else {
		delete(m.marked, rec.SessionID)
	}
	return true, nil
}

// dropVanished forgets a session missing from the store once its workspace
// directory is gone, which is what a removal by another process leaves behind
func (m *Manager) dropVanished(ctx context.Context, sessionID string) error {
	unlock, err := m.locks.lock(sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := m.Get(sessionID)
	if err != nil {
		return nil
	}
	if state, err := probe(rec.Path); err == nil && state == PathDirectory {
		return nil
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	delete(m.marked, sessionID)
	m.mu.Unlock()
	logger.G(logger.WithSession(ctx, sessionID)).Info("forgetting workspace removed by another process")
	return nil
}

func (m *Manager) skillsDir(rec workspaces.Record) string {
	return filepath.Join(rec.Path, SharedSkillsDir)
}
