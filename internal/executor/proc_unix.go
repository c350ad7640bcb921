//go:build unix

package executor

import (
	"os/exec"
	"syscall"
	"time"
)

// configureProcess starts the child in its own process group and kills the
// whole group on cancellation, so subprocesses spawned by the script die too.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second
}
