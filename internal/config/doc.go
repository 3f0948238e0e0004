// SPDX-License-Identifier: MPL-2.0

// Package config loads tsload's settings with Viper, using CUE as the file
// format.
//
// The file is the one named by --config, else ./tsload.cue, else config.cue
// in the user config directory ($XDG_CONFIG_HOME/tsload on Linux). Files are
// validated against the embedded config_schema.cue. Environment variables
// prefixed with TSLOAD_ override file values (TSLOAD_NODE_BINARY,
// TSLOAD_WATCH_DEBOUNCE, ...).
package config
