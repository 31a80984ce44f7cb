// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// ExecutionMode is the top-level strategy for how, and how many times, the
// jailed command is launched.
type ExecutionMode int

const (
	// ModeListenTCP waits for connections on a TCP port and launches one
	// jail per connection.
	ModeListenTCP ExecutionMode = iota
	// ModeStandaloneOnce launches a single supervised process and exits
	// when it does.
	ModeStandaloneOnce
	// ModeStandaloneExecve replaces the current process with the jailed
	// command, without a supervisor.
	ModeStandaloneExecve
	// ModeStandaloneRerun relaunches the jailed command every time it
	// terminates.
	ModeStandaloneRerun
)

// String returns the engine-facing name of the mode.
func (m ExecutionMode) String() string {
	switch m {
	case ModeListenTCP:
		return "LISTEN_TCP"
	case ModeStandaloneOnce:
		return "STANDALONE_ONCE"
	case ModeStandaloneExecve:
		return "STANDALONE_EXECVE"
	case ModeStandaloneRerun:
		return "STANDALONE_RERUN"
	}
	return "UNKNOWN"
}

// ParseMode maps a single-letter mode token to an ExecutionMode. The letter
// set is closed; anything else is a usage error.
func ParseMode(token string) (ExecutionMode, error) {
	switch token {
	case "l":
		return ModeListenTCP, nil
	case "o":
		return ModeStandaloneOnce, nil
	case "e":
		return ModeStandaloneExecve, nil
	case "r":
		return ModeStandaloneRerun, nil
	}
	return 0, usageErrorf("unknown mode %q: supported modes are l (LISTEN_TCP), o (STANDALONE_ONCE), e (STANDALONE_EXECVE), r (STANDALONE_RERUN)", token)
}

// NamespaceConfig records which namespaces the isolation engine unshares for
// the jail. All are enabled by default except the cgroup namespace.
type NamespaceConfig struct {
	Net    bool
	User   bool
	Mount  bool
	PID    bool
	IPC    bool
	UTS    bool
	Cgroup bool
}

// ResourceLimits holds the resolved rlimit values applied to the jailed
// process. Values are canonical 64-bit counts; Unlimited marks RLIM_INFINITY.
type ResourceLimits struct {
	AS     uint64
	Core   uint64
	CPU    uint64
	FSize  uint64
	NoFile uint64
	NProc  uint64
	Stack  uint64
}

// Unlimited is the sentinel for an unbounded resource limit.
const Unlimited uint64 = unix.RLIM_INFINITY

// PassFdSet is the set of file descriptors kept open across the exec of the
// jailed command. It only ever grows; stdin, stdout and stderr are members
// from the start.
type PassFdSet struct {
	fds map[int]struct{}
}

// NewPassFdSet returns a set containing the given descriptors.
func NewPassFdSet(fds ...int) PassFdSet {
	s := PassFdSet{fds: make(map[int]struct{}, len(fds))}
	for _, fd := range fds {
		s.fds[fd] = struct{}{}
	}
	return s
}

// Add inserts a descriptor. Duplicates collapse.
func (s *PassFdSet) Add(fd int) {
	if s.fds == nil {
		s.fds = make(map[int]struct{})
	}
	s.fds[fd] = struct{}{}
}

// Contains reports membership.
func (s PassFdSet) Contains(fd int) bool {
	_, ok := s.fds[fd]
	return ok
}

// Sorted returns the members in ascending order.
func (s PassFdSet) Sorted() []int {
	out := make([]int, 0, len(s.fds))
	for fd := range s.fds {
		out = append(out, fd)
	}
	sort.Ints(out)
	return out
}

// NetworkIfaceConfig describes the MACVLAN interface cloned into the jail's
// network namespace as "vs".
type NetworkIfaceConfig struct {
	// NoLo disables bringing up the loopback interface.
	NoLo bool
	// Clone is the host interface to clone; empty means no cloned interface.
	Clone string
	// IP, Netmask and Gateway configure the cloned interface.
	IP      string
	Netmask string
	Gateway string
}

// Execution-domain bits for personality(2). x/sys/unix does not export
// these, so the values come straight from linux/personality.h.
const (
	PersonaAddrNoRandomize  uint64 = 0x0040000
	PersonaMmapPageZero     uint64 = 0x0100000
	PersonaAddrCompatLayout uint64 = 0x0200000
	PersonaReadImpliesExec  uint64 = 0x0400000
	PersonaAddrLimit3GB     uint64 = 0x8000000
)

// CgroupConfig holds memory-cgroup parameters for the jail.
type CgroupConfig struct {
	MemMax    uint64
	MemMount  string
	MemParent string
}

// JailConfig is the aggregate configuration handed to the isolation engine.
// It is created with hard defaults, mutated in place by the flag scan, and
// frozen by the finalizer; after Parse returns, nothing writes to it.
type JailConfig struct {
	Hostname string
	Cwd      string
	Chroot   string
	Mode     ExecutionMode

	Port          uint16
	BindHost      string
	MaxConnsPerIP uint32

	Daemonize bool
	TimeLimit int64
	Verbose   bool
	LogFile   string

	KeepEnv bool
	Env     []string

	KeepCaps          bool
	Silent            bool
	SkipSetsid        bool
	ApplySandbox      bool
	PivotRootOnly     bool
	DisableNoNewPrivs bool

	RLimits     ResourceLimits
	Personality uint64
	Namespaces  NamespaceConfig
	PassFds     PassFdSet

	InsideUID  uint32
	OutsideUID uint32
	InsideGID  uint32
	OutsideGID uint32

	UIDMappings []IDMapping
	GIDMappings []IDMapping

	Mounts    []MountSpec
	MountProc bool
	RootRW    bool
	TmpfsSize uint64

	Cgroup CgroupConfig
	Iface  NetworkIfaceConfig

	// Command is the residual command-and-arguments vector. Non-empty after
	// finalization, or construction fails.
	Command []string
}

// DefaultTmpfsSize is the size in bytes given to tmpfs mounts unless
// overridden with --tmpfs_size.
const DefaultTmpfsSize = 4 * 1024 * 1024

// DefaultConfig builds a JailConfig with the hard defaults applied before
// any flag is scanned. The process and stack limits default to the live soft
// limits, so this queries the kernel through the given resolver and can fail
// with ErrSystemQuery.
func DefaultConfig(rlimits *RLimitResolver) (*JailConfig, error) {
	nproc, err := rlimits.Resolve(RLimitNProc, "def", 1)
	if err != nil {
		return nil, fmt.Errorf("seeding %s default: %w", RLimitNProc, err)
	}
	stack, err := rlimits.Resolve(RLimitStack, "def", 1)
	if err != nil {
		return nil, fmt.Errorf("seeding %s default: %w", RLimitStack, err)
	}

	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())

	return &JailConfig{
		Hostname: "STOCKADE",
		Cwd:      "/",
		Mode:     ModeStandaloneOnce,
		BindHost: "::",
		RLimits: ResourceLimits{
			AS:     512 * 1024 * 1024,
			Core:   0,
			CPU:    600,
			FSize:  1 * 1024 * 1024,
			NoFile: 32,
			NProc:  nproc,
			Stack:  stack,
		},
		Namespaces: NamespaceConfig{
			Net:   true,
			User:  true,
			Mount: true,
			PID:   true,
			IPC:   true,
			UTS:   true,
		},
		ApplySandbox: true,
		PassFds:      NewPassFdSet(0, 1, 2),
		InsideUID:    uid,
		OutsideUID:   uid,
		InsideGID:    gid,
		OutsideGID:   gid,
		TmpfsSize:    DefaultTmpfsSize,
		MountProc:    true,
		Cgroup: CgroupConfig{
			MemMount:  "/sys/fs/cgroup/memory",
			MemParent: "STOCKADE",
		},
		Iface: NetworkIfaceConfig{
			IP:      "0.0.0.0",
			Netmask: "255.255.255.0",
			Gateway: "0.0.0.0",
		},
	}, nil
}
