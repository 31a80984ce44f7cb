// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"os/user"
	"strconv"
)

// IdentityResolver resolves a user or group token, symbolic or numeric, to a
// numeric id. The same logic serves uids and gids; only the database lookup
// and the noun used in diagnostics differ.
type IdentityResolver struct {
	// noun is "user" or "group", used in diagnostics.
	noun string
	// lookup resolves a symbolic name against the account database.
	// Injectable for tests.
	lookup func(name string) (uint32, bool)
}

// NewUserResolver resolves user tokens against the passwd database.
func NewUserResolver() *IdentityResolver {
	return &IdentityResolver{noun: "user", lookup: lookupUser}
}

// NewGroupResolver resolves group tokens against the group database.
func NewGroupResolver() *IdentityResolver {
	return &IdentityResolver{noun: "group", lookup: lookupGroup}
}

// Resolve splits raw on its first colon into an inside identity and an
// optional outside identity. A token with no colon resolves only the inside
// id; the outside id then takes defaultOutside (the caller's own id). Each
// field resolves independently: symbolic name first, then numeric literal.
// Everything after the first colon is the outside field verbatim.
func (r *IdentityResolver) Resolve(raw string, defaultOutside uint32) (inside, outside uint32, err error) {
	first, second, hasSecond := splitColon(raw)

	inside, err = r.resolveField(first)
	if err != nil {
		return 0, 0, err
	}
	if !hasSecond {
		return inside, defaultOutside, nil
	}
	outside, err = r.resolveField(second)
	if err != nil {
		return 0, 0, err
	}
	return inside, outside, nil
}

func (r *IdentityResolver) resolveField(field string) (uint32, error) {
	if id, ok := r.lookup(field); ok {
		return id, nil
	}
	if isNumericLiteral(field) {
		if id, err := strconv.ParseUint(field, 0, 32); err == nil {
			return uint32(id), nil
		}
	}
	return 0, validationErrorf("no such %s %q", r.noun, field)
}

func lookupUser(name string) (uint32, bool) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, false
	}
	return parseDatabaseID(u.Uid)
}

func lookupGroup(name string) (uint32, bool) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, false
	}
	return parseDatabaseID(g.Gid)
}

func parseDatabaseID(s string) (uint32, bool) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}
