// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package rc

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	qt.Assert(t, os.MkdirAll(filepath.Dir(path), 0o755), qt.IsNil)
	qt.Assert(t, os.WriteFile(path, []byte(content), 0o644), qt.IsNil)
}

func TestFind(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	xdg := t.TempDir()

	qt.Assert(t, Find(home, xdg), qt.Equals, "")
	qt.Assert(t, Find("", ""), qt.Equals, "")

	homeRC := filepath.Join(home, ".procshrc.yml")
	writeFile(t, homeRC, "verbose: true\n")
	qt.Assert(t, Find(home, xdg), qt.Equals, homeRC)
	qt.Assert(t, Find(home, ""), qt.Equals, homeRC)

	xdgRC := filepath.Join(xdg, "procsh", "config.yml")
	writeFile(t, xdgRC, "verbose: false\n")
	qt.Assert(t, Find(home, xdg), qt.Equals, xdgRC)
	qt.Assert(t, Find("", xdg), qt.Equals, xdgRC)

	// Directories are not config files.
	dirHome := t.TempDir()
	qt.Assert(t, os.Mkdir(filepath.Join(dirHome, ".procshrc.yml"), 0o755), qt.IsNil)
	qt.Assert(t, Find(dirHome, ""), qt.Equals, "")
}

func TestRead(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	writeFile(t, path, `
verbose: true
color: false
dir: /srv
env:
  FOO: bar
env_files: [one.env]
temp_dir: /var/tmp
kill_timeout: 500ms
`)
	cfg, err := Read(path)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, *cfg.Verbose, qt.IsTrue)
	qt.Assert(t, *cfg.Color, qt.IsFalse)
	qt.Assert(t, cfg.Dir, qt.Equals, "/srv")
	qt.Assert(t, cfg.Env, qt.DeepEquals, map[string]string{"FOO": "bar"})
	qt.Assert(t, cfg.EnvFiles, qt.DeepEquals, []string{"one.env"})
	qt.Assert(t, cfg.TempDir, qt.Equals, "/var/tmp")
	qt.Assert(t, *cfg.KillTimeout, qt.Equals, 500*time.Millisecond)
}

func TestReadEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, "# nothing set\n")
	cfg, err := Read(path)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, cfg.Verbose, qt.IsNil)
	qt.Assert(t, cfg.KillTimeout, qt.IsNil)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "missing.yml"))
	qt.Assert(t, err, qt.ErrorIs, fs.ErrNotExist)

	unknown := filepath.Join(dir, "unknown.yml")
	writeFile(t, unknown, "verbos: true\n")
	_, err = Read(unknown)
	qt.Assert(t, err, qt.ErrorMatches, `(?s).*unknown.yml: .*field verbos not found.*`)

	badType := filepath.Join(dir, "type.yml")
	writeFile(t, badType, "kill_timeout: soon\n")
	_, err = Read(badType)
	qt.Assert(t, err, qt.Not(qt.IsNil))
}

func TestEnviron(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.env"), "A=one\nB=one\n")
	writeFile(t, filepath.Join(dir, "two.env"), "# comment\nB=two\nC=\"two words\"\n")
	path := filepath.Join(dir, "config.yml")
	writeFile(t, path, `
env_files: [one.env, two.env]
env:
  C: env
  D: env
`)
	cfg, err := Read(path)
	qt.Assert(t, err, qt.IsNil)

	env, err := cfg.Environ([]string{"A=base", "PATH=/bin"})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, env, qt.DeepEquals, []string{
		"A=base",
		"PATH=/bin",
		"A=one",
		"B=two",
		"C=env",
		"D=env",
	})

	// No variables leaves the base untouched.
	var empty *Config
	env, err = empty.Environ([]string{"A=base"})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, env, qt.DeepEquals, []string{"A=base"})

	missing := &Config{EnvFiles: []string{filepath.Join(dir, "missing.env")}}
	_, err = missing.Environ(nil)
	qt.Assert(t, err, qt.ErrorIs, fs.ErrNotExist)
}

func TestInit(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "procsh", "config.yml")
	qt.Assert(t, Init(path), qt.IsNil)

	// The default config sets nothing.
	cfg, err := Read(path)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, cfg.Verbose, qt.IsNil)
	qt.Assert(t, cfg.Env, qt.IsNil)

	qt.Assert(t, os.WriteFile(path, []byte("verbose: true\n"), 0o644), qt.IsNil)
	err = Init(path)
	qt.Assert(t, err, qt.ErrorIs, fs.ErrExist)
	data, err := os.ReadFile(path)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, string(data), qt.Equals, "verbose: true\n")
}
