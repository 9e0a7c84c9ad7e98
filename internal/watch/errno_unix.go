// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import "syscall"

// exhaustionErrnos are inotify resource limits. Once hit, manifest edits are
// silently missed, so the watcher stops instead of limping on.
var exhaustionErrnos = []syscall.Errno{
	syscall.ENOSPC, // max_user_watches
	syscall.EMFILE,
	syscall.ENFILE,
}
