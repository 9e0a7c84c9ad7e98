// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include workspace fixtures (MustWriteFile, WriteManifest),
// fake executables (WriteScript), and a goroutine-safe log sink (Buffer).
package testutil
