// SPDX-License-Identifier: MPL-2.0

// Package config handles bleep configuration using Viper with CUE as the file format.
//
// Configuration is read from bleep.cue in the working directory (or an explicit path),
// validated against the embedded #Config schema (config_schema.cue), merged over the
// built-in defaults, and finally overridden by BLEEP_-prefixed environment variables
// (BLEEP_OUT_DIR, BLEEP_HOOKS_RUNTIME, BLEEP_METRICS_LISTEN, ...).
package config
