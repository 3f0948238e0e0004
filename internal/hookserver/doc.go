// SPDX-License-Identifier: MPL-2.0

// Package hookserver serves the loader hooks to the loader shim running
// inside the host process.
//
// The shim forwards each hook call as an HTTP request. The Go hook runs in
// a session goroutine; whenever it needs the host's default behavior it
// parks, and the response to the pending request is a delegate call the
// shim must perform. The shim posts the outcome to /continue and receives
// the next delegate call or the final result. The server listens on
// localhost only and requires a bearer token on every hook endpoint.
package hookserver
