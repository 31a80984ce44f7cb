// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// RLimit identifies one of the resource-limit kinds the jail configures.
type RLimit int

const (
	RLimitAS RLimit = iota
	RLimitCore
	RLimitCPU
	RLimitFSize
	RLimitNoFile
	RLimitNProc
	RLimitStack
)

// String returns the kernel name of the limit, used in diagnostics.
func (r RLimit) String() string {
	switch r {
	case RLimitAS:
		return "RLIMIT_AS"
	case RLimitCore:
		return "RLIMIT_CORE"
	case RLimitCPU:
		return "RLIMIT_CPU"
	case RLimitFSize:
		return "RLIMIT_FSIZE"
	case RLimitNoFile:
		return "RLIMIT_NOFILE"
	case RLimitNProc:
		return "RLIMIT_NPROC"
	case RLimitStack:
		return "RLIMIT_STACK"
	}
	return fmt.Sprintf("RLIMIT(%d)", int(r))
}

func (r RLimit) resource() int {
	switch r {
	case RLimitAS:
		return unix.RLIMIT_AS
	case RLimitCore:
		return unix.RLIMIT_CORE
	case RLimitCPU:
		return unix.RLIMIT_CPU
	case RLimitFSize:
		return unix.RLIMIT_FSIZE
	case RLimitNoFile:
		return unix.RLIMIT_NOFILE
	case RLimitNProc:
		return unix.RLIMIT_NPROC
	case RLimitStack:
		return unix.RLIMIT_STACK
	}
	return -1
}

// RLimitResolver resolves one resource-limit token against the live kernel
// limits of the calling process.
type RLimitResolver struct {
	// Getrlimit queries the live limit pair for a resource. Defaults to
	// unix.Getrlimit; tests substitute a fixed pair.
	Getrlimit func(resource int, rlim *unix.Rlimit) error
}

// NewRLimitResolver returns a resolver backed by the running kernel.
func NewRLimitResolver() *RLimitResolver {
	return &RLimitResolver{Getrlimit: unix.Getrlimit}
}

// Resolve turns a limit token into a canonical 64-bit count. "max" is the
// live hard limit and "def" the live soft limit (case-insensitive), both
// scaled by mul with saturation at Unlimited. Any other token must be a
// numeric literal (decimal, or hex/octal in strtoull base-0 style), which is
// character-validated before parsing and then multiplied by mul; overflow in
// either step is an error rather than a silently clamped value.
func (r *RLimitResolver) Resolve(kind RLimit, token string, mul uint64) (uint64, error) {
	var cur unix.Rlimit
	if err := r.Getrlimit(kind.resource(), &cur); err != nil {
		return 0, fmt.Errorf("%w: getrlimit %s: %v", ErrSystemQuery, kind, err)
	}

	switch strings.ToLower(token) {
	case "max":
		return scaleSaturating(cur.Max, mul), nil
	case "def":
		return scaleSaturating(cur.Cur, mul), nil
	}

	if !isNumericLiteral(token) {
		return 0, validationErrorf("%s needs a numeric or 'max'/'def' value (%q provided)", kind, token)
	}
	val, err := strconv.ParseUint(token, 0, 64)
	if err != nil {
		if isRangeError(err) {
			return 0, validationErrorf("%s value %q overflows a 64-bit count", kind, token)
		}
		return 0, validationErrorf("%s value %q is not a valid number", kind, token)
	}
	if mul != 0 && val > Unlimited/mul {
		return 0, validationErrorf("%s value %q times %d overflows a 64-bit count", kind, token, mul)
	}
	return val * mul, nil
}

// scaleSaturating multiplies a live limit value, treating Unlimited as a
// sticky sentinel and clamping overflow to Unlimited.
func scaleSaturating(val, mul uint64) uint64 {
	if val == Unlimited || mul == 0 {
		if mul == 0 {
			return 0
		}
		return Unlimited
	}
	if val > Unlimited/mul {
		return Unlimited
	}
	return val * mul
}

// isNumericLiteral accepts the characters a strtoull base-0 literal can
// contain: decimal digits, the 0x prefix marker, and hex digits. It is a
// pre-parse shape check; strconv still decides whether the literal is valid.
func isNumericLiteral(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		case c == 'x' || c == 'X':
		default:
			return false
		}
	}
	return true
}

func isRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}
