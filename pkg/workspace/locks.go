package workspace

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

const lockDirName = ".locks"

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks hands out one mutex per session id. Entries are dropped when
// no goroutine holds or waits for them. When lockDir is set, a lock file per
// session additionally serialises other processes sharing the base directory.
type sessionLocks struct {
	mu      sync.Mutex
	locks   map[string]*sessionLock
	lockDir string
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock blocks until the caller owns sessionID and returns the release function
func (l *sessionLocks) lock(sessionID string) (func(), error) {
	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	unlockFile := func() {}
	if l.lockDir != "" {
		var err error
		unlockFile, err = l.lockFile(sessionID)
		if err != nil {
			l.release(sessionID, sl)
			return nil, err
		}
	}

	return func() {
		unlockFile()
		l.release(sessionID, sl)
	}, nil
}

func (l *sessionLocks) release(sessionID string, sl *sessionLock) {
	sl.mu.Unlock()

	l.mu.Lock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, sessionID)
	}
	l.mu.Unlock()
}

func (l *sessionLocks) lockFile(sessionID string) (func(), error) {
	if err := os.MkdirAll(l.lockDir, dirPerm); err != nil {
		return nil, ioError("mkdir", l.lockDir, err)
	}
	path := filepath.Join(l.lockDir, sessionID+".lock")
	unlock, err := lockedfile.MutexAt(path).Lock()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to lock %s", path)
	}
	return unlock, nil
}

// held returns the number of sessions with a live lock entry
func (l *sessionLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
