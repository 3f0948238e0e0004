// SPDX-License-Identifier: MPL-2.0

// Package resolver maps import specifiers onto source files and module
// formats, so a host runtime can import TypeScript and JSX sources.
//
// The Resolver wraps a Delegate (the host's default resolution) and only
// special-cases what the host cannot do on its own:
//
//   - a "node:" prefix is stripped before anything else;
//   - a directory-style specifier ("./lib/") resolves as "./lib/index";
//   - "./x.mjs" imported from a TypeScript file is first tried as "./x.mts";
//   - TypeScript and JSX specifiers always come back with a format, taken from
//     the extension (.mts, .cts) or from the nearest package.json;
//   - ".json" specifiers are forced to the json format;
//   - an extensionless specifier the host cannot find is retried with each
//     of .js, .json, .ts, .tsx, .jsx and then the same names under /index.
//
// When every rewrite fails the Delegate's original error is returned
// unchanged, so callers can still inspect its code.
package resolver
