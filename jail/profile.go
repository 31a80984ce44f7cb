// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a YAML-declared jail configuration seeded into the compilation
// at the point the --config flag is scanned. Flags that come later in the
// argument vector override it; flags that came earlier are overridden by it.
// Zero-valued scalar fields leave the current configuration untouched; list
// fields append in declaration order.
type Profile struct {
	Hostname  string `yaml:"hostname,omitempty"`
	Cwd       string `yaml:"cwd,omitempty"`
	Chroot    string `yaml:"chroot,omitempty"`
	Mode      string `yaml:"mode,omitempty"`
	Port      uint16 `yaml:"port,omitempty"`
	BindHost  string `yaml:"bindhost,omitempty"`
	User      string `yaml:"user,omitempty"`
	Group     string `yaml:"group,omitempty"`
	TimeLimit int64  `yaml:"time_limit,omitempty"`

	RootRW      bool `yaml:"rw,omitempty"`
	KeepEnv     bool `yaml:"keep_env,omitempty"`
	DisableProc bool `yaml:"disable_proc,omitempty"`

	Env     []string `yaml:"env,omitempty"`
	PassFds []int    `yaml:"pass_fd,omitempty"`

	TmpfsSize uint64   `yaml:"tmpfs_size,omitempty"`
	Bind      []string `yaml:"bind,omitempty"`
	BindRO    []string `yaml:"bind_ro,omitempty"`
	Tmpfs     []string `yaml:"tmpfs,omitempty"`

	UIDMappings []string `yaml:"uid_mappings,omitempty"`
	GIDMappings []string `yaml:"gid_mappings,omitempty"`

	// RLimits maps a limit name (as, core, cpu, fsize, nofile, nproc,
	// stack) to a token in the same syntax the --rlimit_* flags accept.
	RLimits map[string]string `yaml:"rlimits,omitempty"`

	// DisableNamespaces lists namespaces not to unshare: net, user, mount,
	// pid, ipc, uts.
	DisableNamespaces []string `yaml:"disable_namespaces,omitempty"`
	EnableCgroupNS    bool     `yaml:"enable_cgroup_ns,omitempty"`
}

// LoadProfile reads and strictly decodes a profile file; unknown keys are
// rejected so a typo cannot silently weaken the jail.
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, validationErrorf("profile %s: %v", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, validationErrorf("profile %s: %v", path, err)
	}
	return &p, nil
}

// profileRLimits maps profile limit names to registry kinds and the unit
// multiplier their flag counterparts use.
var profileRLimits = map[string]struct {
	kind RLimit
	mul  uint64
	set  func(l *ResourceLimits, v uint64)
}{
	"as":     {RLimitAS, mib, func(l *ResourceLimits, v uint64) { l.AS = v }},
	"core":   {RLimitCore, mib, func(l *ResourceLimits, v uint64) { l.Core = v }},
	"cpu":    {RLimitCPU, 1, func(l *ResourceLimits, v uint64) { l.CPU = v }},
	"fsize":  {RLimitFSize, mib, func(l *ResourceLimits, v uint64) { l.FSize = v }},
	"nofile": {RLimitNoFile, 1, func(l *ResourceLimits, v uint64) { l.NoFile = v }},
	"nproc":  {RLimitNProc, 1, func(l *ResourceLimits, v uint64) { l.NProc = v }},
	"stack":  {RLimitStack, mib, func(l *ResourceLimits, v uint64) { l.Stack = v }},
}

// apply mutates the in-progress configuration with the profile's settings,
// using the same semantics as the corresponding flags. The tmpfs size is
// applied before the tmpfs list so declared mounts snapshot the profile's
// size, mirroring argv ordering.
func (p *Profile) apply(st *scanState) error {
	cfg := st.cfg

	if p.Hostname != "" {
		cfg.Hostname = p.Hostname
	}
	if p.Cwd != "" {
		cfg.Cwd = p.Cwd
	}
	if p.Chroot != "" {
		cfg.Chroot = p.Chroot
	}
	if p.Mode != "" {
		m, err := ParseMode(p.Mode)
		if err != nil {
			return err
		}
		cfg.Mode = m
	}
	if p.Port != 0 {
		cfg.Port = p.Port
		cfg.Mode = ModeListenTCP
	}
	if p.BindHost != "" {
		cfg.BindHost = p.BindHost
	}
	if p.User != "" {
		st.user = p.User
	}
	if p.Group != "" {
		st.group = p.Group
	}
	if p.TimeLimit != 0 {
		cfg.TimeLimit = p.TimeLimit
	}
	if p.RootRW {
		cfg.RootRW = true
	}
	if p.KeepEnv {
		cfg.KeepEnv = true
	}
	if p.DisableProc {
		cfg.MountProc = false
	}
	cfg.Env = append(cfg.Env, p.Env...)
	for _, fd := range p.PassFds {
		if fd < 0 {
			return validationErrorf("profile pass_fd %d is not a valid descriptor", fd)
		}
		cfg.PassFds.Add(fd)
	}

	for name, token := range p.RLimits {
		lim, ok := profileRLimits[name]
		if !ok {
			return validationErrorf("profile rlimits has unknown limit %q", name)
		}
		v, err := st.parser.rlimits.Resolve(lim.kind, token, lim.mul)
		if err != nil {
			return err
		}
		lim.set(&cfg.RLimits, v)
	}

	if p.TmpfsSize != 0 {
		cfg.TmpfsSize = p.TmpfsSize
	}
	for _, spec := range p.Bind {
		m, err := ParseBindMount(spec, false)
		if err != nil {
			return err
		}
		cfg.Mounts = append(cfg.Mounts, m)
	}
	for _, spec := range p.BindRO {
		m, err := ParseBindMount(spec, true)
		if err != nil {
			return err
		}
		cfg.Mounts = append(cfg.Mounts, m)
	}
	for _, dst := range p.Tmpfs {
		m, err := TmpfsMount(dst, cfg.TmpfsSize)
		if err != nil {
			return err
		}
		cfg.Mounts = append(cfg.Mounts, m)
	}

	for _, spec := range p.UIDMappings {
		m, err := ParseIDMapping(spec)
		if err != nil {
			return err
		}
		cfg.UIDMappings = append(cfg.UIDMappings, m)
	}
	for _, spec := range p.GIDMappings {
		m, err := ParseIDMapping(spec)
		if err != nil {
			return err
		}
		cfg.GIDMappings = append(cfg.GIDMappings, m)
	}

	for _, ns := range p.DisableNamespaces {
		switch ns {
		case "net":
			cfg.Namespaces.Net = false
		case "user":
			cfg.Namespaces.User = false
		case "mount":
			cfg.Namespaces.Mount = false
		case "pid":
			cfg.Namespaces.PID = false
		case "ipc":
			cfg.Namespaces.IPC = false
		case "uts":
			cfg.Namespaces.UTS = false
		default:
			return validationErrorf("profile disable_namespaces has unknown namespace %q", ns)
		}
	}
	if p.EnableCgroupNS {
		cfg.Namespaces.Cgroup = true
	}

	return nil
}

// String renders a short profile summary for debug logging.
func (p *Profile) String() string {
	return fmt.Sprintf("profile{hostname:%q chroot:%q mode:%q mounts:%d}",
		p.Hostname, p.Chroot, p.Mode, len(p.Bind)+len(p.BindRO)+len(p.Tmpfs))
}
