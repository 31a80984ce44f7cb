// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"strings"
)

func contains(s, substr string) bool { return strings.Contains(s, substr) }

// newTestParser returns a parser with a fixed live limit pair (soft 4096,
// hard 8192) and small fake account databases, so tests never depend on the
// host.
func newTestParser() *Parser {
	return &Parser{
		rlimits: fixedLimits(4096, 8192),
		users: &IdentityResolver{noun: "user", lookup: func(name string) (uint32, bool) {
			switch name {
			case "root":
				return 0, true
			case "nobody":
				return 65534, true
			}
			return 0, false
		}},
		groups: &IdentityResolver{noun: "group", lookup: func(name string) (uint32, bool) {
			switch name {
			case "wheel":
				return 10, true
			case "nogroup":
				return 65533, true
			}
			return 0, false
		}},
	}
}
