// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package interp

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"golang.org/x/sys/unix"

	"github.com/procsh/procsh/tree"
)

// lowestFreeFD returns the descriptor the next open would get.
func lowestFreeFD(t *testing.T) int {
	t.Helper()
	fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, unix.Close(fd), qt.IsNil)
	return fd
}

// Not parallel, as other tests open files concurrently.
func TestNoDescriptorLeaks(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	nodes := []tree.Node{
		&tree.Pipe{Left: call("echo", "hi"), Right: call("cat")},
		&tree.Pipe{Left: call("yes"), Right: call("head", "-n1")},
		&tree.Pipe{Left: &tree.Pipe{Left: call("true"), Right: call("cat")}, Right: call("false")},
		&tree.Pipe{Left: call("procsh-no-such-program"), Right: call("cat")},
		&tree.Simple{Args: []string{"cat"}, In: tree.Redirect{Kind: tree.HereDoc, Target: "body\n"}},
		&tree.Simple{Args: []string{"cat"}, In: tree.Redirect{Kind: tree.FromFile, Target: "missing"}},
		&tree.Simple{Args: []string{"echo"}, Out: tree.Redirect{Kind: tree.ToFileTrunc, Target: "out"}},
		&tree.Simple{Args: []string{"cd", "."}, Out: tree.Redirect{Kind: tree.ToFileAppend, Target: "out"}},
		&tree.Subshell{Child: call("true"), Out: tree.Redirect{Kind: tree.ToFileAppend, Target: "out"}},
	}
	// Warm up, as the runtime keeps some descriptors such as the poller.
	for _, node := range nodes {
		s.Evaluate(ctx, node)
	}
	want := lowestFreeFD(t)
	for _, node := range nodes {
		s.Evaluate(ctx, node)
		qt.Assert(t, lowestFreeFD(t), qt.Equals, want, qt.Commentf("after %v", node))
	}
}

func TestInterruptMask(t *testing.T) {
	var m interruptMask
	qt.Assert(t, m.held(), qt.IsFalse)

	outer := m.hold()
	inner := m.hold()
	qt.Assert(t, m.held(), qt.IsTrue)

	// SIGINT is discarded rather than stopping the test binary.
	qt.Assert(t, syscall.Kill(os.Getpid(), syscall.SIGINT), qt.IsNil)
	deadline := time.Now().Add(5 * time.Second)
	for m.discarded.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("SIGINT was never received")
		}
		time.Sleep(time.Millisecond)
	}

	qt.Assert(t, inner.Close(), qt.IsNil)
	qt.Assert(t, inner.Close(), qt.IsNil)
	qt.Assert(t, m.held(), qt.IsTrue)
	qt.Assert(t, outer.Close(), qt.IsNil)
	qt.Assert(t, m.held(), qt.IsFalse)

	// Holds can start again once all were released.
	qt.Assert(t, m.hold().Close(), qt.IsNil)
	qt.Assert(t, m.held(), qt.IsFalse)
}

func TestInterruptMaskScope(t *testing.T) {
	t.Parallel()

	type seen struct{ background, masked bool }
	var s *Session
	var got []seen
	record := func(next ExecHandlerFunc) ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if args[0] == "record" {
				got = append(got, seen{HandlerCtx(ctx).Background, s.mask.held()})
				return nil
			}
			return next(ctx, args)
		}
	}
	s, _, _ = newTestSession(t, ExecHandlers(record))

	// Sequence the background job after the foreground one, so that the
	// slice is never written concurrently.
	node := &tree.Seq{Left: call("record"), Right: &tree.Bg{Left: call("record")}}
	qt.Assert(t, s.Evaluate(context.Background(), node), qt.Equals, 0)
	s.Wait()
	qt.Assert(t, got, qt.HasLen, 2)
	qt.Assert(t, got[0], qt.Equals, seen{background: false, masked: true})
	qt.Assert(t, got[1].background, qt.IsTrue)
	qt.Assert(t, s.mask.held(), qt.IsFalse)
}
