// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package canbus

import (
	"fmt"
	"runtime"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

// SocketCANBus is only available on Linux.
type SocketCANBus struct{}

// OpenSocketCAN always fails outside Linux.
func OpenSocketCAN(ifname string) (*SocketCANBus, error) {
	return nil, fmt.Errorf("SocketCAN is not supported on %s (interface %s)", runtime.GOOS, ifname)
}

func (b *SocketCANBus) Send(vesc.Frame) error { return ErrClosed }
func (b *SocketCANBus) Receive() (vesc.Frame, error) { return vesc.Frame{}, ErrClosed }
func (b *SocketCANBus) Close() error { return nil }
