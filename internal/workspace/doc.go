// SPDX-License-Identifier: MPL-2.0

// Package workspace holds the module registry: every front-end module found
// under the ui directory, with its manifest dependencies, bundle specs and
// build hooks. A Registry is built once per load and never mutated; a
// manifest change produces a brand new Registry.
package workspace
