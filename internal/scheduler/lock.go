package scheduler

import (
	"fmt"
	"os"
	"syscall"
)

// acquireLock takes an exclusive, non-blocking flock on s.lockFile so that
// at most one process instance runs the cron entries, even when multiple
// replicas of the HTTP server are deployed.
func (s *Scheduler) acquireLock() error {
	f, err := os.OpenFile(s.lockFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("scheduler: open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("scheduler: another instance already owns %s: %w", s.lockFile, err)
	}
	s.lockHandle = f
	return nil
}

func (s *Scheduler) releaseLock() {
	if s.lockHandle == nil {
		return
	}
	syscall.Flock(int(s.lockHandle.Fd()), syscall.LOCK_UN)
	s.lockHandle.Close()
	s.lockHandle = nil
}
