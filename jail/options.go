// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/pflag"
)

const mib = 1024 * 1024

// option is one entry of the closed flag registry: a long name, an optional
// single-letter shorthand, a value placeholder (empty for flags that take no
// value), help text, and the mutation handler invoked when the flag is seen.
// Additive-versus-overwrite semantics live entirely in the handler.
type option struct {
	long  string
	short string
	arg   string
	help  string
	apply func(st *scanState, value string) error
}

// scanState is the in-progress compilation: the config under mutation plus
// the identity tokens whose resolution is deferred to the finalizer.
type scanState struct {
	cfg    *JailConfig
	parser *Parser

	user  string
	group string

	// err records the first handler failure so the caller gets the typed
	// diagnostic rather than pflag's rewrapped message.
	err error
}

// Parser compiles a flat argument vector into a finalized JailConfig. It
// performs a single left-to-right scan; each flag resolves to exactly one
// registry handler, so last-write-wins for scalar flags and argv-order
// accumulation for additive flags both fall out of the scan order.
type Parser struct {
	rlimits *RLimitResolver
	users   *IdentityResolver
	groups  *IdentityResolver
}

// NewParser returns a parser backed by the live kernel and account
// databases.
func NewParser() *Parser {
	return &Parser{
		rlimits: NewRLimitResolver(),
		users:   NewUserResolver(),
		groups:  NewGroupResolver(),
	}
}

// Parse consumes the argument vector once and returns the finalized,
// read-only configuration. Errors classify with errors.Is against ErrHelp,
// ErrUsage, ErrValidation and ErrSystemQuery.
func (p *Parser) Parse(args []string) (*JailConfig, error) {
	cfg, err := DefaultConfig(p.rlimits)
	if err != nil {
		return nil, err
	}
	st := &scanState{cfg: cfg, parser: p}

	// getopt treats "-?" as a help request; pflag cannot register '?' as a
	// shorthand, so route it before the scan. Tokens after "--" belong to
	// the jailed command and stay untouched.
	for _, a := range args {
		if a == "--" {
			break
		}
		if a == "-?" {
			return nil, ErrHelp
		}
	}

	fs := pflag.NewFlagSet("stockade", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, opt := range options {
		f := fs.VarPF(&optionValue{st: st, opt: opt}, opt.long, opt.short, opt.help)
		if opt.arg == "" {
			f.NoOptDefVal = "true"
		}
	}

	if err := fs.Parse(args); err != nil {
		if st.err != nil {
			return nil, st.err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if err := p.finalize(st, fs.Args()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// optionValue adapts a registry entry to pflag.Value so that pflag's scan
// drives the handlers in strict argv order.
type optionValue struct {
	st  *scanState
	opt option
}

func (v *optionValue) Set(value string) error {
	if err := v.opt.apply(v.st, value); err != nil {
		v.st.err = err
		return err
	}
	return nil
}

func (v *optionValue) String() string { return "" }

func (v *optionValue) Type() string {
	if v.opt.arg == "" {
		return "bool"
	}
	return "value"
}

// setFlag returns a handler that sets a boolean field.
func setFlag(f func(c *JailConfig)) func(*scanState, string) error {
	return func(st *scanState, _ string) error {
		f(st.cfg)
		return nil
	}
}

// setString returns a handler that overwrites a string field.
func setString(f func(c *JailConfig, v string)) func(*scanState, string) error {
	return func(st *scanState, value string) error {
		f(st.cfg, value)
		return nil
	}
}

// setRLimit returns a handler that eagerly resolves a limit token.
func setRLimit(kind RLimit, mul uint64, f func(l *ResourceLimits, v uint64)) func(*scanState, string) error {
	return func(st *scanState, value string) error {
		v, err := st.parser.rlimits.Resolve(kind, value, mul)
		if err != nil {
			return err
		}
		f(&st.cfg.RLimits, v)
		return nil
	}
}

// setPersona returns a handler that ORs a personality bit.
func setPersona(bit uint64) func(*scanState, string) error {
	return func(st *scanState, _ string) error {
		st.cfg.Personality |= bit
		return nil
	}
}

func parseUintValue(field, value string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(value, 0, bits)
	if err != nil {
		return 0, validationErrorf("%s value %q is not a valid number", field, value)
	}
	return v, nil
}

// options is the closed registry. Entry order is also the usage-text order.
var options = []option{
	{"help", "h", "", "Show this help", func(*scanState, string) error {
		return ErrHelp
	}},
	{"mode", "M", "MODE", "Execution mode (default: o):\n" +
		"\tl: Wait for connections on a TCP port (specified with --port) [LISTEN_TCP]\n" +
		"\to: Launch a single process on a console using clone/execve [STANDALONE_ONCE]\n" +
		"\te: Launch a single process on a console using execve [STANDALONE_EXECVE]\n" +
		"\tr: Launch a single process on a console, keep relaunching it [STANDALONE_RERUN]",
		func(st *scanState, value string) error {
			m, err := ParseMode(value)
			if err != nil {
				return err
			}
			st.cfg.Mode = m
			return nil
		}},
	{"config", "", "FILE", "YAML jail profile applied at this point of the scan; later flags override it",
		func(st *scanState, value string) error {
			prof, err := LoadProfile(value)
			if err != nil {
				return err
			}
			return prof.apply(st)
		}},
	{"chroot", "c", "PATH", "Directory containing / of the jail (default: none)",
		setString(func(c *JailConfig, v string) { c.Chroot = v })},
	{"rw", "", "", "Mount / as RW (default: RO)",
		setFlag(func(c *JailConfig) { c.RootRW = true })},
	{"user", "u", "USER", "Username/uid of processes inside the jail (default: your current uid). Accepts inside_uid:outside_uid",
		func(st *scanState, value string) error {
			st.user = value
			return nil
		}},
	{"group", "g", "GROUP", "Groupname/gid of processes inside the jail (default: your current gid). Accepts inside_gid:outside_gid",
		func(st *scanState, value string) error {
			st.group = value
			return nil
		}},
	{"hostname", "H", "NAME", "UTS name (hostname) of the jail (default: 'STOCKADE')",
		setString(func(c *JailConfig, v string) { c.Hostname = v })},
	{"cwd", "D", "PATH", "Directory in the namespace the process will run in (default: '/')",
		setString(func(c *JailConfig, v string) { c.Cwd = v })},
	{"port", "p", "PORT", "TCP port to bind to (enables LISTEN_TCP mode) (default: 0)",
		func(st *scanState, value string) error {
			v, err := parseUintValue("port", value, 16)
			if err != nil {
				return err
			}
			st.cfg.Port = uint16(v)
			st.cfg.Mode = ModeListenTCP
			return nil
		}},
	{"bindhost", "", "ADDR", "IP address to bind to in LISTEN_TCP mode, '::ffff:127.0.0.1' for localhost (default: '::')",
		setString(func(c *JailConfig, v string) { c.BindHost = v })},
	{"max_conns_per_ip", "i", "N", "Maximum number of connections per one IP (default: 0 (unlimited))",
		func(st *scanState, value string) error {
			v, err := parseUintValue("max_conns_per_ip", value, 32)
			if err != nil {
				return err
			}
			st.cfg.MaxConnsPerIP = uint32(v)
			return nil
		}},
	{"log", "l", "FILE", "Log file (default: stderr)",
		setString(func(c *JailConfig, v string) { c.LogFile = v })},
	{"time_limit", "t", "SECS", "Maximum time that a jail can exist, in seconds (default: 0 (unlimited))",
		func(st *scanState, value string) error {
			v, err := strconv.ParseInt(value, 0, 64)
			if err != nil || v < 0 {
				return validationErrorf("time_limit value %q is not a valid number of seconds", value)
			}
			st.cfg.TimeLimit = v
			return nil
		}},
	{"daemon", "d", "", "Daemonize after start",
		setFlag(func(c *JailConfig) { c.Daemonize = true })},
	{"verbose", "v", "", "Verbose output",
		setFlag(func(c *JailConfig) { c.Verbose = true })},
	{"keep_env", "e", "", "Pass all environment variables to the child",
		setFlag(func(c *JailConfig) { c.KeepEnv = true })},
	{"env", "E", "KEY=VAL", "Environment variable for the child (can be used multiple times)",
		func(st *scanState, value string) error {
			st.cfg.Env = append(st.cfg.Env, value)
			return nil
		}},
	{"keep_caps", "", "", "Don't drop capabilities (DANGEROUS)",
		setFlag(func(c *JailConfig) { c.KeepCaps = true })},
	{"silent", "", "", "Redirect the child's fd:0/1/2 to /dev/null",
		setFlag(func(c *JailConfig) { c.Silent = true })},
	{"disable_sandbox", "", "", "Don't enable the seccomp-bpf sandboxing",
		setFlag(func(c *JailConfig) { c.ApplySandbox = false })},
	{"skip_setsid", "", "", "Don't call setsid(), allows terminal signal handling in the jailed process",
		setFlag(func(c *JailConfig) { c.SkipSetsid = true })},
	{"pass_fd", "", "FD", "Don't close this FD before executing the child (can be used multiple times); 0/1/2 are always kept",
		func(st *scanState, value string) error {
			v, err := strconv.ParseInt(value, 0, 32)
			if err != nil || v < 0 {
				return validationErrorf("pass_fd value %q is not a valid descriptor", value)
			}
			st.cfg.PassFds.Add(int(v))
			return nil
		}},
	{"pivot_root_only", "", "", "Only perform pivot_root, no chroot; enables nested namespaces",
		setFlag(func(c *JailConfig) { c.PivotRootOnly = true })},
	{"disable_no_new_privs", "", "", "Don't set prctl(NO_NEW_PRIVS, 1) (DANGEROUS)",
		setFlag(func(c *JailConfig) { c.DisableNoNewPrivs = true })},
	{"rlimit_as", "", "MB", "RLIMIT_AS in MB, 'max' for the hard limit, 'def' for the soft limit (default: 512)",
		setRLimit(RLimitAS, mib, func(l *ResourceLimits, v uint64) { l.AS = v })},
	{"rlimit_core", "", "MB", "RLIMIT_CORE in MB, 'max'/'def' as above (default: 0)",
		setRLimit(RLimitCore, mib, func(l *ResourceLimits, v uint64) { l.Core = v })},
	{"rlimit_cpu", "", "SECS", "RLIMIT_CPU, 'max'/'def' as above (default: 600)",
		setRLimit(RLimitCPU, 1, func(l *ResourceLimits, v uint64) { l.CPU = v })},
	{"rlimit_fsize", "", "MB", "RLIMIT_FSIZE in MB, 'max'/'def' as above (default: 1)",
		setRLimit(RLimitFSize, mib, func(l *ResourceLimits, v uint64) { l.FSize = v })},
	{"rlimit_nofile", "", "N", "RLIMIT_NOFILE, 'max'/'def' as above (default: 32)",
		setRLimit(RLimitNoFile, 1, func(l *ResourceLimits, v uint64) { l.NoFile = v })},
	{"rlimit_nproc", "", "N", "RLIMIT_NPROC, 'max'/'def' as above (default: soft limit)",
		setRLimit(RLimitNProc, 1, func(l *ResourceLimits, v uint64) { l.NProc = v })},
	{"rlimit_stack", "", "MB", "RLIMIT_STACK in MB, 'max'/'def' as above (default: soft limit)",
		setRLimit(RLimitStack, mib, func(l *ResourceLimits, v uint64) { l.Stack = v })},
	{"persona_addr_compat_layout", "", "", "personality(ADDR_COMPAT_LAYOUT)",
		setPersona(PersonaAddrCompatLayout)},
	{"persona_mmap_page_zero", "", "", "personality(MMAP_PAGE_ZERO)",
		setPersona(PersonaMmapPageZero)},
	{"persona_read_implies_exec", "", "", "personality(READ_IMPLIES_EXEC)",
		setPersona(PersonaReadImpliesExec)},
	{"persona_addr_limit_3gb", "", "", "personality(ADDR_LIMIT_3GB)",
		setPersona(PersonaAddrLimit3GB)},
	{"persona_addr_no_randomize", "", "", "personality(ADDR_NO_RANDOMIZE)",
		setPersona(PersonaAddrNoRandomize)},
	{"disable_clone_newnet", "N", "", "Don't unshare the net namespace; enables networking inside the jail",
		setFlag(func(c *JailConfig) { c.Namespaces.Net = false })},
	{"disable_clone_newuser", "", "", "Don't unshare the user namespace; requires euid==0",
		setFlag(func(c *JailConfig) { c.Namespaces.User = false })},
	{"disable_clone_newns", "", "", "Don't unshare the mount namespace",
		setFlag(func(c *JailConfig) { c.Namespaces.Mount = false })},
	{"disable_clone_newpid", "", "", "Don't unshare the pid namespace",
		setFlag(func(c *JailConfig) { c.Namespaces.PID = false })},
	{"disable_clone_newipc", "", "", "Don't unshare the ipc namespace",
		setFlag(func(c *JailConfig) { c.Namespaces.IPC = false })},
	{"disable_clone_newuts", "", "", "Don't unshare the uts namespace",
		setFlag(func(c *JailConfig) { c.Namespaces.UTS = false })},
	{"enable_clone_newcgroup", "", "", "Unshare the cgroup namespace",
		setFlag(func(c *JailConfig) { c.Namespaces.Cgroup = true })},
	{"uid_mapping", "U", "SPEC", "Add a custom uid mapping of the form inside_uid:outside_uid:count; requires newuidmap",
		func(st *scanState, value string) error {
			m, err := ParseIDMapping(value)
			if err != nil {
				return err
			}
			st.cfg.UIDMappings = append(st.cfg.UIDMappings, m)
			return nil
		}},
	{"gid_mapping", "G", "SPEC", "Add a custom gid mapping of the form inside_gid:outside_gid:count; requires newgidmap",
		func(st *scanState, value string) error {
			m, err := ParseIDMapping(value)
			if err != nil {
				return err
			}
			st.cfg.GIDMappings = append(st.cfg.GIDMappings, m)
			return nil
		}},
	{"bindmount_ro", "R", "SPEC", "Mountpoint to bind-mount read-only inside the jail; 'source' or 'source:dest' (can be used multiple times)",
		func(st *scanState, value string) error {
			m, err := ParseBindMount(value, true)
			if err != nil {
				return err
			}
			st.cfg.Mounts = append(st.cfg.Mounts, m)
			return nil
		}},
	{"bindmount", "B", "SPEC", "Mountpoint to bind-mount read-write inside the jail; 'source' or 'source:dest' (can be used multiple times)",
		func(st *scanState, value string) error {
			m, err := ParseBindMount(value, false)
			if err != nil {
				return err
			}
			st.cfg.Mounts = append(st.cfg.Mounts, m)
			return nil
		}},
	{"tmpfsmount", "T", "DST", "Mountpoint for a RW tmpfs inside the jail (can be used multiple times)",
		func(st *scanState, value string) error {
			m, err := TmpfsMount(value, st.cfg.TmpfsSize)
			if err != nil {
				return err
			}
			st.cfg.Mounts = append(st.cfg.Mounts, m)
			return nil
		}},
	{"tmpfs_size", "", "BYTES", "Number of bytes to allocate for subsequent tmpfs mounts (default: 4194304)",
		func(st *scanState, value string) error {
			v, err := parseUintValue("tmpfs_size", value, 64)
			if err != nil {
				return err
			}
			st.cfg.TmpfsSize = v
			return nil
		}},
	{"disable_proc", "", "", "Disable mounting /proc in the jail",
		setFlag(func(c *JailConfig) { c.MountProc = false })},
	{"cgroup_mem_max", "", "BYTES", "Maximum number of bytes to use in the memory cgroup (default: 0 (disabled))",
		func(st *scanState, value string) error {
			v, err := parseUintValue("cgroup_mem_max", value, 64)
			if err != nil {
				return err
			}
			st.cfg.Cgroup.MemMax = v
			return nil
		}},
	{"cgroup_mem_mount", "", "PATH", "Location of the memory cgroup FS (default: '/sys/fs/cgroup/memory')",
		setString(func(c *JailConfig, v string) { c.Cgroup.MemMount = v })},
	{"cgroup_mem_parent", "", "NAME", "Pre-existing memory cgroup to use as a parent (default: 'STOCKADE')",
		setString(func(c *JailConfig, v string) { c.Cgroup.MemParent = v })},
	{"iface_no_lo", "", "", "Don't bring up the 'lo' interface",
		setFlag(func(c *JailConfig) { c.Iface.NoLo = true })},
	{"iface", "I", "NAME", "Interface to clone (MACVLAN) into the jail's namespace as 'vs'",
		setString(func(c *JailConfig, v string) { c.Iface.Clone = v })},
	{"iface_vs_ip", "", "IP", "IP of the 'vs' interface",
		setString(func(c *JailConfig, v string) { c.Iface.IP = v })},
	{"iface_vs_nm", "", "MASK", "Netmask of the 'vs' interface",
		setString(func(c *JailConfig, v string) { c.Iface.Netmask = v })},
	{"iface_vs_gw", "", "IP", "Default gateway for the 'vs' interface",
		setString(func(c *JailConfig, v string) { c.Iface.Gateway = v })},
}
