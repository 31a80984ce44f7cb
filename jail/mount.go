// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Mount flag bits, as consumed by the isolation engine's mount(2) calls.
const (
	MountBind      = unix.MS_BIND
	MountRecursive = unix.MS_REC
	MountReadOnly  = unix.MS_RDONLY
)

// MountSpec describes one filesystem mount to apply when building the
// jail's filesystem view. Specs form an ordered sequence; order is
// load-bearing because parents must be mounted before their children.
type MountSpec struct {
	// Source is the host path for bind mounts; empty for synthetic
	// filesystems (tmpfs, proc).
	Source string
	// Dest is the mount point inside the jail. Never empty.
	Dest string
	// Flags is the MS_* bitset passed to the engine.
	Flags uintptr
	// FSType is the filesystem type for non-bind mounts ("tmpfs", "proc").
	FSType string
	// Options is the mount options string. For tmpfs mounts it is a
	// "size=<N>" snapshot owned by this spec.
	Options string
}

// splitColon splits s at its first colon without mutating anything. The
// second return is everything after the colon, verbatim; hasSecond reports
// whether a colon was present at all.
func splitColon(s string) (first, second string, hasSecond bool) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// ParseBindMount parses a SRC[:DST] bind-mount spec. The destination
// defaults to the source when no colon is present. readOnly adds MS_RDONLY
// on top of the recursive-bind flags.
func ParseBindMount(spec string, readOnly bool) (MountSpec, error) {
	src, dst, hasDst := splitColon(spec)
	if !hasDst {
		dst = src
	}
	if src == "" || dst == "" {
		return MountSpec{}, validationErrorf("bind mount %q needs a non-empty SRC[:DST]", spec)
	}
	m := MountSpec{
		Source: src,
		Dest:   dst,
		Flags:  MountBind | MountRecursive,
	}
	if readOnly {
		m.Flags |= MountReadOnly
	}
	return m, nil
}

// TmpfsMount builds a tmpfs mount at dst. The options string is owned by
// the returned spec: it captures the tmpfs size configured at the moment
// the flag is processed, and later size changes do not reach back into it.
func TmpfsMount(dst string, sizeBytes uint64) (MountSpec, error) {
	if dst == "" {
		return MountSpec{}, validationErrorf("tmpfs mount needs a non-empty DST")
	}
	return MountSpec{
		Dest:    dst,
		FSType:  "tmpfs",
		Options: fmt.Sprintf("size=%d", sizeBytes),
	}, nil
}

// IDMapping is one uid or gid sub-mapping handed to newuidmap/newgidmap.
// The fields stay raw strings; the engine passes them through.
type IDMapping struct {
	Inside  string
	Outside string
	Count   string
}

// ParseIDMapping parses an INSIDE:OUTSIDE:COUNT mapping spec. Exactly three
// non-empty fields are required; anything else is rejected rather than
// silently yielding empty trailing fields.
func ParseIDMapping(spec string) (IDMapping, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return IDMapping{}, validationErrorf("id mapping %q must have exactly three INSIDE:OUTSIDE:COUNT fields, got %d", spec, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return IDMapping{}, validationErrorf("id mapping %q has an empty field", spec)
		}
	}
	return IDMapping{Inside: parts[0], Outside: parts[1], Count: parts[2]}, nil
}
