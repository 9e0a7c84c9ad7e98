// SPDX-License-Identifier: MPL-2.0

//go:build windows

package process

import "os/exec"

// configureGroup keeps exec's default Kill on cancellation.
func configureGroup(_ *exec.Cmd) {}
