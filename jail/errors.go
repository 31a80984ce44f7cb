// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for configuration compilation. Callers classify
// failures with errors.Is to decide exit behavior; every diagnostic carries
// the offending literal and the field or resource it applies to.
var (
	// ErrHelp is returned when the user explicitly asked for usage text.
	// It is the only "error" that maps to a success exit.
	ErrHelp = errors.New("help requested")

	// ErrUsage covers unknown flags, missing flag values, and other
	// argument-shape violations. Usage text is rendered before a failure
	// exit.
	ErrUsage = errors.New("usage error")

	// ErrValidation covers semantically invalid flag values: unresolvable
	// identities, malformed numeric literals, malformed mount or mapping
	// specs, and a missing positional command.
	ErrValidation = errors.New("invalid configuration")

	// ErrSystemQuery covers failures of live host queries (kernel resource
	// limits). These are always fatal; the host is considered unusable for
	// configuration compilation.
	ErrSystemQuery = errors.New("system query failed")
)

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
