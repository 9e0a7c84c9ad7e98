// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes JSON or CUE documents through an embedded CUE schema.
//
// Module manifests and the bleep config file both follow the same flow:
//
//  1. Compile the embedded schema
//  2. Compile the document and unify it with the schema definition
//  3. Validate and decode into a Go struct
//
// JSON is a subset of CUE, so package.json files go through the same path as
// hand-written .cue files. Every failure is reported with a JSON-path style
// location (for example "build.bundle[0].input").
package cueutil
