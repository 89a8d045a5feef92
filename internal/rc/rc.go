// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information
//
// Parts of this file are adapted from Task (github.com/go-task/task),
// Copyright (c) 2016 Andrey Nering, under the MIT License.

// Package rc reads the shell's configuration file.
package rc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/renameio/v2"
	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

// Config holds the settings of a configuration file. Unset fields are nil or
// empty, so that flags may fill in for them.
type Config struct {
	Verbose     *bool             `yaml:"verbose"`
	Color       *bool             `yaml:"color"`
	Dir         string            `yaml:"dir"`
	Env         map[string]string `yaml:"env"`
	EnvFiles    []string          `yaml:"env_files"`
	TempDir     string            `yaml:"temp_dir"`
	KillTimeout *time.Duration    `yaml:"kill_timeout"`

	// path is the file the config was read from, if any.
	path string
}

// Find returns the path of the first configuration file which exists, looking
// in xdg first and in home second. Either directory may be empty, in which
// case it is skipped. If no file exists, an empty path is returned.
func Find(home, xdg string) string {
	var candidates []string
	if xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "procsh", "config.yml"))
	}
	if home != "" {
		candidates = append(candidates, filepath.Join(home, ".procshrc.yml"))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// Read decodes the configuration file at path. Unknown keys are an error.
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{path: path}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty file.
			return cfg, nil
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Environ returns base with the variables of the config applied on top.
// Dotenv files are read in order, so later files win; the Env map wins over
// all of them. Relative dotenv paths are resolved against the directory of
// the configuration file.
func (c *Config) Environ(base []string) ([]string, error) {
	if c == nil || (len(c.EnvFiles) == 0 && len(c.Env) == 0) {
		return base, nil
	}
	vars := make(map[string]string)
	for _, name := range c.EnvFiles {
		if !filepath.IsAbs(name) && c.path != "" {
			name = filepath.Join(filepath.Dir(c.path), name)
		}
		fileVars, err := godotenv.Read(name)
		if err != nil {
			return nil, err
		}
		maps.Copy(vars, fileVars)
	}
	maps.Copy(vars, c.Env)

	// The last value of a name wins when a session is built from the list.
	env := slices.Clip(base)
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		env = append(env, name+"="+vars[name])
	}
	return env, nil
}

const defaultConfig = `# procsh configuration.
# Flags given on the command line take precedence.

# Print each command before it is started.
# verbose: false

# Color error messages and the verbose trace.
# color: false

# The directory new sessions start in.
# dir: /home/gopher/src

# Variables to add to the environment.
# env:
#   EDITOR: vi

# Dotenv files to load, relative to this file. Later files win.
# env_files:
#   - .env

# Where here-document bodies are written.
# temp_dir: /tmp

# How long an interrupted program has to exit before it is killed.
# kill_timeout: 2s
`

// Init writes a default configuration file at path. An existing file is
// never overwritten.
func Init(path string) error {
	if _, err := os.Lstat(path); err == nil {
		return &fs.PathError{Op: "init", Path: path, Err: fs.ErrExist}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, []byte(defaultConfig), 0o644)
}
