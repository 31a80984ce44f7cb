// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"fmt"
	"testing"
)

func fakeUsers() *IdentityResolver {
	return &IdentityResolver{noun: "user", lookup: func(name string) (uint32, bool) {
		switch name {
		case "root":
			return 0, true
		case "nobody":
			return 65534, true
		}
		return 0, false
	}}
}

func TestResolveNumericRoundTrip(t *testing.T) {
	t.Parallel()

	r := fakeUsers()
	for _, uid := range []uint32{0, 1, 1000, 65534, 4294967295} {
		raw := fmt.Sprintf("%d", uid)
		inside, outside, err := r.Resolve(raw, 4242)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", raw, err)
		}
		if inside != uid || outside != 4242 {
			t.Errorf("Resolve(%q) = (%d, %d), want (%d, 4242)", raw, inside, outside, uid)
		}
	}
}

func TestResolveSymbolicName(t *testing.T) {
	t.Parallel()

	r := fakeUsers()
	inside, outside, err := r.Resolve("nobody", 7)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if inside != 65534 || outside != 7 {
		t.Errorf("Resolve(nobody) = (%d, %d), want (65534, 7)", inside, outside)
	}
}

func TestResolveInsideOutsidePair(t *testing.T) {
	t.Parallel()

	r := fakeUsers()
	cases := []struct {
		raw             string
		inside, outside uint32
	}{
		{"1000:2000", 1000, 2000},
		{"nobody:0", 65534, 0},
		{"0:nobody", 0, 65534},
		{"root:root", 0, 0},
	}
	for _, tc := range cases {
		inside, outside, err := r.Resolve(tc.raw, 99)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tc.raw, err)
			continue
		}
		if inside != tc.inside || outside != tc.outside {
			t.Errorf("Resolve(%q) = (%d, %d), want (%d, %d)", tc.raw, inside, outside, tc.inside, tc.outside)
		}
	}
}

func TestResolveUnknownIdentity(t *testing.T) {
	t.Parallel()

	r := fakeUsers()
	for _, raw := range []string{"ghost", "1000:ghost", "ghost:1000"} {
		_, _, err := r.Resolve(raw, 0)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Resolve(%q) error = %v, want ErrValidation", raw, err)
		}
		if err != nil && !contains(err.Error(), "ghost") {
			t.Errorf("Resolve(%q) error %q does not name the offending literal", raw, err)
		}
	}
}

func TestResolveOutsideFieldIsVerbatim(t *testing.T) {
	t.Parallel()

	// Everything after the first colon is one field; a second colon is not
	// another split point, so "1:2:3" has outside field "2:3", which is
	// neither a name nor a number.
	r := fakeUsers()
	_, _, err := r.Resolve("1:2:3", 0)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Resolve(1:2:3) error = %v, want ErrValidation", err)
	}
}

func TestResolveEmptyInsideField(t *testing.T) {
	t.Parallel()

	r := fakeUsers()
	_, _, err := r.Resolve(":1000", 0)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Resolve(:1000) error = %v, want ErrValidation", err)
	}
}
