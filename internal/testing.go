// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package internal

import (
	"os"
	"os/exec"
	"strings"
)

// TestMainSetup is used by the tests which start real programs, either from
// a session or by running procsh itself, to ensure a reasonably clean and
// consistent environment.
func TestMainSetup() {
	// Set the locale to computer-friendly English and UTF-8, so that the
	// messages of programs like cd's stat errors or wc's output are stable.
	// Some systems like macOS miss C.UTF8, so fall back to the US English locale.
	if out, _ := exec.Command("locale", "-a").Output(); strings.Contains(
		strings.ToLower(string(out)), "c.utf",
	) {
		os.Setenv("LANGUAGE", "C.UTF-8")
		os.Setenv("LC_ALL", "C.UTF-8")
	} else {
		os.Setenv("LANGUAGE", "en_US.UTF-8")
		os.Setenv("LC_ALL", "en_US.UTF-8")
	}

	// The user's configuration and color overrides must not leak in.
	os.Unsetenv("XDG_CONFIG_HOME")
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "PROCSH_COLOR_") {
			os.Unsetenv(name)
		}
	}
}
