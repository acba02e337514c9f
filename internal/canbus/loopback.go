// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"sync"
	"time"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

// Loopback is an in-memory bus. Frames passed to Send are recorded and
// then delivered back to Receive, as a CAN controller in loopback mode
// would. Inject delivers a frame without recording it as sent.
type Loopback struct {
	rx chan vesc.Frame

	mu   sync.Mutex
	sent []vesc.Frame

	closeOnce sync.Once
	done      chan struct{}
}

// NewLoopback creates a loopback bus buffering up to size frames.
func NewLoopback(size int) *Loopback {
	return &Loopback{
		rx:   make(chan vesc.Frame, size),
		done: make(chan struct{}),
	}
}

// Send records f and queues it for Receive.
func (l *Loopback) Send(f vesc.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	l.sent = append(l.sent, f)
	l.mu.Unlock()

	return l.Inject(f)
}

// Inject queues f for Receive.
func (l *Loopback) Inject(f vesc.Frame) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.rx <- f:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Receive blocks until a frame is queued or the bus is closed.
func (l *Loopback) Receive() (vesc.Frame, error) {
	select {
	case f := <-l.rx:
		if f.Timestamp.IsZero() {
			f.Timestamp = time.Now()
		}
		return f, nil
	case <-l.done:
		return vesc.Frame{}, ErrClosed
	}
}

// Sent returns a copy of every frame passed to Send.
func (l *Loopback) Sent() []vesc.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]vesc.Frame(nil), l.sent...)
}

// Close unblocks Receive and makes further sends fail.
func (l *Loopback) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
