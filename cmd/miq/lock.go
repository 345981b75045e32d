package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/viperML/miq/internal/miqerr"
)

// processLock is a process-singleton advisory lock on /miq/lock (spec.md
// §6). No file-locking library appears anywhere in the example corpus, so
// this is one of the rare components implemented directly against the
// standard library (see DESIGN.md): syscall.Flock over a held *os.File is
// the standard Go idiom for this and needs no third-party wrapper.
type processLock struct {
	f *os.File
}

// acquireLock takes an exclusive, non-blocking lock on path. A held lock
// returns miqerr.LockContention rather than blocking, since a second miq
// instance running concurrently against the same root is a usage error,
// not a condition to wait out.
func acquireLock(path string) (*processLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, miqerr.Wrap(miqerr.Config, err, fmt.Sprintf("opening lock file %s", path))
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, miqerr.New(miqerr.LockContention, fmt.Sprintf("another miq instance holds %s", path))
		}
		return nil, miqerr.Wrap(miqerr.LockContention, err, fmt.Sprintf("locking %s", path))
	}

	return &processLock{f: f}, nil
}

// Release drops the lock and closes the underlying file.
func (l *processLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	return l.f.Close()
}
