// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// RenderUsage writes the full usage text, one line per registry entry plus
// worked invocation examples. Flag lines are rendered bold when w is a
// terminal.
func RenderUsage(w io.Writer) {
	bold := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		if isTerminal(w) {
			line = "\033[1m" + line + "\033[0m"
		}
		fmt.Fprintln(w, line)
	}
	plain := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}

	bold("Usage: stockade [options] -- path_to_command [args]")
	bold("Options:")
	for _, opt := range options {
		spec := " --" + opt.long
		if opt.short != "" {
			spec += "|-" + opt.short
		}
		if opt.arg != "" {
			spec += " " + opt.arg
		}
		bold("%s", spec)
		plain("\t%s", opt.help)
	}

	bold("\n Examples:")
	plain(" Wait on a port 31337 for connections, and run /bin/sh")
	bold("  stockade -Ml --port 31337 --chroot / -- /bin/sh -i")
	plain(" Re-run echo command as a sub-process")
	bold("  stockade -Mr --chroot / -- /bin/echo \"ABC\"")
	plain(" Run echo command once only, as a sub-process")
	bold("  stockade -Mo --chroot / -- /bin/echo \"ABC\"")
	plain(" Execute echo command directly, without a supervising process")
	bold("  stockade -Me --chroot / --disable_proc -- /bin/echo \"ABC\"")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
