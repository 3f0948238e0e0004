// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the hot paths of a hook call, used
// to generate the PGO profile:
//   - package.json classification with a cold and a warm cache
//   - specifier resolution including extension probing
//   - esbuild transforms
//   - configuration loading and schema validation
//
// To generate a profile, run:
//
//	go test ./internal/benchmark -run '^$' -bench . -cpuprofile default.pgo
package benchmark
