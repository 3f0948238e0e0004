// SPDX-License-Identifier: MPL-2.0

// Package tsconfig locates and loads the tsconfig.json that governs a
// project. Files may contain comments and trailing commas. Relative and
// package "extends" chains are followed and merged into one raw config.
package tsconfig
