// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{"--", "/bin/true"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Mode != ModeStandaloneOnce {
		t.Errorf("mode = %v, want STANDALONE_ONCE", cfg.Mode)
	}
	if cfg.Hostname != "STOCKADE" || cfg.Cwd != "/" || cfg.BindHost != "::" {
		t.Errorf("unexpected scalar defaults: %q %q %q", cfg.Hostname, cfg.Cwd, cfg.BindHost)
	}
	if cfg.RLimits.AS != 512*mib || cfg.RLimits.CPU != 600 || cfg.RLimits.NoFile != 32 {
		t.Errorf("unexpected rlimit defaults: %+v", cfg.RLimits)
	}
	// nproc and stack seed from the live soft limit.
	if cfg.RLimits.NProc != 4096 || cfg.RLimits.Stack != 4096 {
		t.Errorf("nproc/stack = %d/%d, want live soft limit 4096", cfg.RLimits.NProc, cfg.RLimits.Stack)
	}
	ns := cfg.Namespaces
	if !ns.Net || !ns.User || !ns.Mount || !ns.PID || !ns.IPC || !ns.UTS || ns.Cgroup {
		t.Errorf("unexpected namespace defaults: %+v", ns)
	}
	if got := cfg.PassFds.Sorted(); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("pass fds = %v, want [0 1 2]", got)
	}
	if !reflect.DeepEqual(cfg.Command, []string{"/bin/true"}) {
		t.Errorf("command = %v", cfg.Command)
	}
	if !cfg.ApplySandbox || !cfg.MountProc {
		t.Error("sandbox and proc mounting must default to enabled")
	}
}

func TestParsePortEnablesListenMode(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{"--port", "31337", "--", "/bin/sh"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Mode != ModeListenTCP {
		t.Errorf("mode = %v, want LISTEN_TCP", cfg.Mode)
	}
	if cfg.Port != 31337 {
		t.Errorf("port = %d, want 31337", cfg.Port)
	}
}

func TestParseModeLastAssignmentWins(t *testing.T) {
	t.Parallel()

	cases := []struct {
		args []string
		want ExecutionMode
	}{
		{[]string{"--port", "31337", "-M", "r", "--", "/bin/sh"}, ModeStandaloneRerun},
		{[]string{"-M", "r", "--port", "31337", "--", "/bin/sh"}, ModeListenTCP},
		{[]string{"-M", "e", "-M", "o", "--", "/bin/sh"}, ModeStandaloneOnce},
		{[]string{"-Ml", "--", "/bin/sh"}, ModeListenTCP},
	}
	for _, tc := range cases {
		cfg, err := newTestParser().Parse(tc.args)
		if err != nil {
			t.Errorf("Parse(%v): %v", tc.args, err)
			continue
		}
		if cfg.Mode != tc.want {
			t.Errorf("Parse(%v) mode = %v, want %v", tc.args, cfg.Mode, tc.want)
		}
	}
}

func TestParseUnknownModeLetter(t *testing.T) {
	t.Parallel()

	_, err := newTestParser().Parse([]string{"-M", "x", "--", "/bin/sh"})
	if !errors.Is(err, ErrUsage) {
		t.Errorf("error = %v, want ErrUsage", err)
	}
}

func TestParseMissingCommandIsFatal(t *testing.T) {
	t.Parallel()

	argSets := [][]string{
		{},
		{"--chroot", "/"},
		{"--port", "31337"},
		{"-Mr", "--hostname", "X", "-e"},
		{"--"},
	}
	for _, args := range argSets {
		_, err := newTestParser().Parse(args)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Parse(%v) error = %v, want ErrValidation", args, err)
		}
	}
}

func TestParseScalarFlagsLastWins(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{
		"--hostname", "first", "-H", "second",
		"--chroot", "/a", "-c", "/b",
		"--rlimit_nofile", "64", "--rlimit_nofile", "128",
		"--", "/bin/sh",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Hostname != "second" {
		t.Errorf("hostname = %q, want %q", cfg.Hostname, "second")
	}
	if cfg.Chroot != "/b" {
		t.Errorf("chroot = %q, want /b", cfg.Chroot)
	}
	if cfg.RLimits.NoFile != 128 {
		t.Errorf("nofile = %d, want 128", cfg.RLimits.NoFile)
	}
}

func TestParseAdditiveFlagsKeepArgvOrder(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{
		"-E", "A=1", "-E", "B=2", "-E", "C=3",
		"--pass_fd", "5", "--pass_fd", "7", "--pass_fd", "5",
		"-R", "/ro1", "-B", "/rw1", "-R", "/ro2",
		"--", "/bin/sh",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(cfg.Env, []string{"A=1", "B=2", "C=3"}) {
		t.Errorf("env = %v", cfg.Env)
	}
	if got := cfg.PassFds.Sorted(); !reflect.DeepEqual(got, []int{0, 1, 2, 5, 7}) {
		t.Errorf("pass fds = %v, want [0 1 2 5 7]", got)
	}

	// User mounts follow the two implicit ones, in declaration order.
	user := cfg.Mounts[2:]
	wantDests := []string{"/ro1", "/rw1", "/ro2"}
	if len(user) != len(wantDests) {
		t.Fatalf("user mounts = %d, want %d", len(user), len(wantDests))
	}
	for i, m := range user {
		if m.Dest != wantDests[i] {
			t.Errorf("mount %d dest = %q, want %q", i, m.Dest, wantDests[i])
		}
	}
	if user[0].Flags&MountReadOnly == 0 || user[2].Flags&MountReadOnly == 0 {
		t.Error("read-only binds lost MS_RDONLY")
	}
	if user[1].Flags&MountReadOnly != 0 {
		t.Error("read-write bind gained MS_RDONLY")
	}
}

func TestParseTmpfsSizeSnapshot(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{
		"-T", "/early",
		"--tmpfs_size", "8388608",
		"-T", "/late",
		"--", "/bin/sh",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var early, late *MountSpec
	for i := range cfg.Mounts {
		switch cfg.Mounts[i].Dest {
		case "/early":
			early = &cfg.Mounts[i]
		case "/late":
			late = &cfg.Mounts[i]
		}
	}
	if early == nil || late == nil {
		t.Fatalf("tmpfs mounts missing: %+v", cfg.Mounts)
	}
	if early.Options != "size=4194304" {
		t.Errorf("early tmpfs options = %q, want the default size snapshot", early.Options)
	}
	if late.Options != "size=8388608" {
		t.Errorf("late tmpfs options = %q, want the updated size snapshot", late.Options)
	}
}

func TestParseReadOnlyBindNoColon(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{"--bindmount_ro", "/data", "--", "/bin/sh"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := cfg.Mounts[len(cfg.Mounts)-1]
	if m.Source != "/data" || m.Dest != "/data" {
		t.Errorf("src=%q dst=%q, want /data for both", m.Source, m.Dest)
	}
	if m.Flags != MountBind|MountRecursive|MountReadOnly {
		t.Errorf("flags = %#x, want bind|rec|rdonly", m.Flags)
	}
}

func TestParseHelpRequests(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"--help"}, {"-h"}, {"-?"}, {"--chroot", "/", "-h"}} {
		_, err := newTestParser().Parse(args)
		if !errors.Is(err, ErrHelp) {
			t.Errorf("Parse(%v) error = %v, want ErrHelp", args, err)
		}
	}
}

func TestParseHelpTokenAfterSeparatorIsCommand(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{"--", "/bin/echo", "-?"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(cfg.Command, []string{"/bin/echo", "-?"}) {
		t.Errorf("command = %v", cfg.Command)
	}
}

func TestParseUsageViolations(t *testing.T) {
	t.Parallel()

	argSets := [][]string{
		{"--no_such_flag", "--", "/bin/sh"},
		{"-Z", "--", "/bin/sh"},
		{"--chroot"}, // missing value
	}
	for _, args := range argSets {
		_, err := newTestParser().Parse(args)
		if !errors.Is(err, ErrUsage) {
			t.Errorf("Parse(%v) error = %v, want ErrUsage", args, err)
		}
	}
}

func TestParseMalformedNumbersAreFatal(t *testing.T) {
	t.Parallel()

	argSets := [][]string{
		{"--port", "http", "--", "/bin/sh"},
		{"--port", "99999", "--", "/bin/sh"},
		{"--pass_fd", "two", "--", "/bin/sh"},
		{"--tmpfs_size", "4MB", "--", "/bin/sh"},
		{"--time_limit", "-10", "--", "/bin/sh"},
		{"--rlimit_as", "lots", "--", "/bin/sh"},
	}
	for _, args := range argSets {
		_, err := newTestParser().Parse(args)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Parse(%v) error = %v, want ErrValidation", args, err)
		}
	}
}

func TestParseIDMappingFlags(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{
		"-U", "0:100000:65536", "-U", "1000:1000:1",
		"-G", "0:100000:65536",
		"--", "/bin/sh",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.UIDMappings) != 2 || len(cfg.GIDMappings) != 1 {
		t.Fatalf("mappings = %d uid, %d gid", len(cfg.UIDMappings), len(cfg.GIDMappings))
	}
	want := IDMapping{Inside: "0", Outside: "100000", Count: "65536"}
	if cfg.UIDMappings[0] != want {
		t.Errorf("uid mapping = %+v, want %+v", cfg.UIDMappings[0], want)
	}
	if cfg.UIDMappings[1] != (IDMapping{Inside: "1000", Outside: "1000", Count: "1"}) {
		t.Errorf("uid mapping order broken: %+v", cfg.UIDMappings[1])
	}

	_, err = newTestParser().Parse([]string{"-U", "0:100000", "--", "/bin/sh"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("short mapping error = %v, want ErrValidation", err)
	}
}

func TestParseDeferredIdentities(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{
		"-u", "nobody:root", "-g", "nogroup",
		"--", "/bin/sh",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.InsideUID != 65534 || cfg.OutsideUID != 0 {
		t.Errorf("uid = (%d, %d), want (65534, 0)", cfg.InsideUID, cfg.OutsideUID)
	}
	if cfg.InsideGID != 65533 {
		t.Errorf("inside gid = %d, want 65533", cfg.InsideGID)
	}

	_, err = newTestParser().Parse([]string{"-u", "ghost", "--", "/bin/sh"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unknown user error = %v, want ErrValidation", err)
	}
}

func TestParsePersonalityAccumulates(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{
		"--persona_addr_no_randomize",
		"--persona_mmap_page_zero",
		"--", "/bin/sh",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Personality == 0 {
		t.Fatal("personality bits were not accumulated")
	}
	cfg2, err := newTestParser().Parse([]string{"--persona_addr_no_randomize", "--", "/bin/sh"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Personality&cfg2.Personality != cfg2.Personality {
		t.Error("OR-accumulation lost a previously set bit")
	}
	if cfg.Personality == cfg2.Personality {
		t.Error("second personality flag had no effect")
	}
}

func TestParseNamespaceToggles(t *testing.T) {
	t.Parallel()

	cfg, err := newTestParser().Parse([]string{
		"-N", "--disable_clone_newuts", "--enable_clone_newcgroup",
		"--", "/bin/sh",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ns := cfg.Namespaces
	if ns.Net || ns.UTS {
		t.Errorf("disabled namespaces still set: %+v", ns)
	}
	if !ns.Cgroup {
		t.Error("cgroup namespace not enabled")
	}
	if !ns.User || !ns.Mount || !ns.PID || !ns.IPC {
		t.Errorf("unrelated namespaces were touched: %+v", ns)
	}
}
