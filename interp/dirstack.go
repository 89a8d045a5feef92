// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import "slices"

// DirStack is the last-in first-out stack of directories used by the pushd
// and popd built-ins. The zero value is an empty stack ready to use.
type DirStack struct {
	dirs []string // top is last
}

// Push adds dir to the top of the stack.
func (s *DirStack) Push(dir string) { s.dirs = append(s.dirs, dir) }

// Pop removes and returns the top of the stack.
// It returns false if the stack is empty.
func (s *DirStack) Pop() (string, bool) {
	dir, ok := s.Top()
	if ok {
		s.dirs[len(s.dirs)-1] = ""
		s.dirs = s.dirs[:len(s.dirs)-1]
	}
	return dir, ok
}

// Top returns the top of the stack without removing it.
func (s *DirStack) Top() (string, bool) {
	if len(s.dirs) == 0 {
		return "", false
	}
	return s.dirs[len(s.dirs)-1], true
}

func (s *DirStack) Len() int { return len(s.dirs) }

// Entries returns a copy of the stack, from the top to the bottom.
func (s *DirStack) Entries() []string {
	if len(s.dirs) == 0 {
		return nil
	}
	entries := slices.Clone(s.dirs)
	slices.Reverse(entries)
	return entries
}

// Clone returns a copy of the stack which can be modified without affecting s.
func (s *DirStack) Clone() *DirStack {
	return &DirStack{dirs: slices.Clone(s.dirs)}
}
