package executor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// child tracks the process the coordinator forked for the current run.
type child struct {
	pid int
}

func (c *child) set(pid int) { c.pid = pid }

func (c *child) clear() { c.pid = 0 }

func (c *child) present() bool { return c.pid > 0 }

// kill sends SIGKILL to the tracked child. A child that already went away
// is not an error.
func (c *child) kill() error {
	if !c.present() {
		return nil
	}
	if err := unix.Kill(c.pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
