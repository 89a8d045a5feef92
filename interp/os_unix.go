// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package interp

import "golang.org/x/sys/unix"

// hasPermissionToDir reports whether the current user may change into dir,
// which requires execute permission on it.
func hasPermissionToDir(dir string) bool {
	return unix.Access(dir, unix.X_OK) == nil
}
