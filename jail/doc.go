// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

// Package jail compiles a flat argument vector into the validated, immutable
// configuration consumed by the stockade isolation engine.
//
// The central type is [Parser], which performs a single left-to-right scan
// of the arguments. Each flag resolves through a closed declarative registry
// to exactly one mutation handler over the in-progress [JailConfig]:
// scalar flags overwrite (last occurrence wins), additive flags (env vars,
// pass-fds, bind mounts, tmpfs mounts, id mappings) accumulate in argv
// order. Handlers lean on three small resolvers: [RLimitResolver] turns
// limit tokens ("max", "def", or a strict numeric literal) into canonical
// counts against the live kernel limits, [IdentityResolver] turns symbolic
// or numeric user/group tokens into ids, and the shared colon grammar in
// mount.go parses bind, tmpfs and id-mapping specs without mutating its
// input.
//
// After the scan a finalization pass runs exactly once: it pushes the
// implicit /proc and filesystem-root mounts to the front of the mount
// sequence (root first, then /proc, then all user mounts in declaration
// order; parents must mount before children),
// resolves the deferred user/group tokens, and requires a non-empty
// residual command. The finalized JailConfig is then read-only and owned by
// the isolation engine; nothing in this package touches it again.
//
// Mount ordering, eager strict numeric parsing, and identity resolution are
// the security-sensitive parts: an error in any of them weakens the jail
// downstream, which is why every diagnostic carries the offending literal
// and the field it applies to, and why nothing here is lenient.
package jail
