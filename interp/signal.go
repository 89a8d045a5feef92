// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// interruptMask keeps SIGINT away from the shell while it waits for
// foreground commands.
//
// While at least one hold is open, SIGINT is delivered to a channel and
// discarded. The signal is never ignored at the OS level, so programs
// started meanwhile begin with the default disposition and an interrupt
// from the terminal only stops them. Once the last hold is closed, the
// default disposition is restored.
//
// Holds nest and may overlap across goroutines, such as the stages of a
// pipeline.
type interruptMask struct {
	mu    sync.Mutex
	holds int
	sigs  chan os.Signal

	discarded atomic.Int64
}

// hold masks SIGINT until the returned closer is closed.
// Closing it more than once has no further effect.
func (m *interruptMask) hold() io.Closer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holds == 0 {
		m.sigs = make(chan os.Signal, 1)
		signal.Notify(m.sigs, os.Interrupt)
		go m.drain(m.sigs)
	}
	m.holds++
	return &maskHold{mask: m}
}

func (m *interruptMask) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holds--
	if m.holds > 0 {
		return
	}
	// No more sends happen on the channel once Stop returns.
	signal.Stop(m.sigs)
	close(m.sigs)
	m.sigs = nil
}

func (m *interruptMask) drain(sigs <-chan os.Signal) {
	for range sigs {
		m.discarded.Add(1)
	}
}

// held reports whether SIGINT is currently masked.
func (m *interruptMask) held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holds > 0
}

type maskHold struct {
	mask *interruptMask
	once sync.Once
}

func (h *maskHold) Close() error {
	h.once.Do(h.mask.release)
	return nil
}
