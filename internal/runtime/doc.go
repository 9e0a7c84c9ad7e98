// SPDX-License-Identifier: MPL-2.0

// Package runtime provides the execution runtimes for module build hooks.
//
// Two runtime implementations are available:
//   - native: executes the hook line using the host shell (sh/bash/PowerShell)
//   - virtual: executes the hook line using an embedded shell interpreter (mvdan/sh)
//
// Both implement the Runtime interface. A hook is an argv list joined with
// spaces into one command line, so shell syntax inside hook arguments keeps
// working across runtimes.
package runtime
