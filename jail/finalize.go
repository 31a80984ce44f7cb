// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

// finalize runs exactly once after the argument scan. It injects the
// implicit mounts, resolves the deferred identity tokens, and verifies that
// a command remains. After it returns, the configuration is read-only.
func (p *Parser) finalize(st *scanState, command []string) error {
	cfg := st.cfg

	// The implicit mounts go to the front, proc first and root second, so
	// that the root ends at index 0 and /proc at index 1 with all
	// user-declared mounts following in their append order. The engine
	// applies them in sequence, parents before children.
	if cfg.MountProc {
		prependMount(cfg, MountSpec{Dest: "/proc", FSType: "proc"})
	}
	root := MountSpec{Dest: "/", FSType: "tmpfs"}
	if cfg.Chroot != "" {
		root = MountSpec{Source: cfg.Chroot, Dest: "/", Flags: MountBind | MountRecursive}
	}
	if !cfg.RootRW {
		root.Flags |= MountReadOnly
	}
	prependMount(cfg, root)

	if st.user != "" {
		inside, outside, err := p.users.Resolve(st.user, cfg.OutsideUID)
		if err != nil {
			return err
		}
		cfg.InsideUID, cfg.OutsideUID = inside, outside
	}
	if st.group != "" {
		inside, outside, err := p.groups.Resolve(st.group, cfg.OutsideGID)
		if err != nil {
			return err
		}
		cfg.InsideGID, cfg.OutsideGID = inside, outside
	}

	if len(command) == 0 {
		return validationErrorf("no command provided after the flags")
	}
	cfg.Command = command
	return nil
}

func prependMount(cfg *JailConfig, m MountSpec) {
	cfg.Mounts = append([]MountSpec{m}, cfg.Mounts...)
}
