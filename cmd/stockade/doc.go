// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

// stockade compiles its command line into a jail configuration and hands it
// to the isolation engine.
//
// Usage:
//
//	stockade [options] -- path_to_command [args]
//
// Run stockade --help for the full flag reference with examples.
package main
