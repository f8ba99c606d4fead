package cache

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nightlyone/lockfile"
)

// entryLock guards a single cache entry's directory against concurrent
// writers racing on the same key (spec.md §4.2: "two concurrent builds
// cannot corrupt an entry"). lockfile's PID-file locks are advisory and
// process-wide, which is exactly the granularity a multi-process build
// farm sharing one cache directory needs.
type entryLock struct {
	lf lockfile.Lockfile
}

func newEntryLock(entryDir string) (*entryLock, error) {
	lf, err := lockfile.New(fmt.Sprintf("%s.lock", entryDir))
	if err != nil {
		return nil, fmt.Errorf("creating lock for %s: %w", entryDir, err)
	}
	return &entryLock{lf: lf}, nil
}

// acquire retries with exponential backoff until the lock is held or
// maxWait elapses, since a concurrent writer for the same key is expected
// to finish quickly (it's writing the same task's outputs we are).
func (l *entryLock) acquire(maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	b.InitialInterval = 10 * time.Millisecond

	return backoff.Retry(func() error {
		err := l.lf.TryLock()
		if err != nil {
			return err
		}
		return nil
	}, b)
}

func (l *entryLock) release() error {
	return l.lf.Unlock()
}
