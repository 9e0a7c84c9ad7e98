// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureGroup puts the child in its own process group so that tools
// spawned through wrappers (yarn, npx) are terminated along with it.
func configureGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
}
