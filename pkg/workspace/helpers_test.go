package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingObserver struct {
	mu        sync.Mutex
	created   map[workspaces.Strategy]int
	converted []string
	removed   int
	failed    int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{created: make(map[workspaces.Strategy]int)}
}

func (o *countingObserver) SessionCreated(s workspaces.Strategy) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created[s]++
}

func (o *countingObserver) StrategyConverted(from, to workspaces.Strategy) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.converted = append(o.converted, from.String()+"->"+to.String())
}

func (o *countingObserver) SessionsSwept(removed, failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed += removed
	o.failed += failed
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]workspaces.Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]workspaces.Record)}
}

func (s *memoryStore) Save(_ context.Context, rec workspaces.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = rec.Clone()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}

func (s *memoryStore) List(context.Context) ([]workspaces.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]workspaces.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) get(sessionID string) (workspaces.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sessionID]
	return rec, ok
}

// setupGlobalSkills creates a global skills root holding skill alpha
func setupGlobalSkills(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "shared_skills")
	writeSkill(t, root, "alpha", "# alpha\n")
	return root
}

func writeSkill(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SkillFileName), []byte(content), 0o644))
}

func testConfig(t *testing.T, globalRoot string) Config {
	t.Helper()
	return Config{
		BaseDir:            filepath.Join(t.TempDir(), "workspaces"),
		GlobalSkillsDir:    globalRoot,
		AverageSkillsSize:  10,
		IgnorePatterns:     []string{".DS_Store"},
		SweepConcurrency:   2,
		SweepRetryAttempts: 2,
		SweepRetryDelay:    time.Millisecond,
	}
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg := testConfig(t, setupGlobalSkills(t))
	m, err := NewManager(cfg, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return m, clock
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func requireState(t *testing.T, path string, want PathState) {
	t.Helper()
	got, err := probe(path)
	require.NoError(t, err)
	require.Equal(t, want, got, "state of %s", path)
}
