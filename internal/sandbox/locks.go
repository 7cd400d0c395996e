package sandbox

import "sync"

// FileLocks serializes read-modify-write cycles on shared files such as a
// crontab or a zone include config. Locks are keyed by path.
type FileLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileLocks() *FileLocks {
	return &FileLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until path is free and returns the matching unlock func.
func (l *FileLocks) Lock(path string) func() {
	l.mu.Lock()
	m, ok := l.locks[path]
	if !ok {
		m = &sync.Mutex{}
		l.locks[path] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
