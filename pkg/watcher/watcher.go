// Package watcher notifies about changes under the global skills root so a
// long-running process can react, for instance by reporting drifted copies.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/openclaw/clawspace/pkg/logger"
)

// ChangeFunc receives the sorted paths that changed during one debounce window
type ChangeFunc func(ctx context.Context, paths []string)

// Watcher watches a directory and its immediate subdirectories
type Watcher struct {
	root     string
	delay    time.Duration
	onChange ChangeFunc
}

// New creates a watcher of root that calls onChange once changes have been
// quiet for delay
func New(root string, delay time.Duration, onChange ChangeFunc) *Watcher {
	return &Watcher{root: root, delay: delay, onChange: onChange}
}

// Run watches until ctx is cancelled. The root is created if it is missing.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", w.root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fw.Close()

	if err := w.addTree(fw); err != nil {
		return err
	}
	log := logger.G(ctx).WithField("root", w.root)
	log.Info("watching global skills")

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]bool)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.root {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.Add(event.Name); err != nil {
						log.WithError(err).WithField("dir", event.Name).Warn("failed to watch new skill")
					}
				}
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]bool)
			log.WithField("changes", len(paths)).Debug("global skills changed")
			w.onChange(ctx, paths)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("file watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher) error {
	if err := fw.Add(w.root); err != nil {
		return errors.Wrapf(err, "failed to watch %s", w.root)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", w.root)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(w.root, e.Name())
		if err := fw.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
	}
	return nil
}
