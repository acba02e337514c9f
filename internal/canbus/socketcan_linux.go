// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package canbus

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

// SocketCANBus is a raw CAN socket bound to one interface.
type SocketCANBus struct {
	file *os.File

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// OpenSocketCAN binds a raw CAN socket to the named interface (e.g. can0).
func OpenSocketCAN(ifname string) (*SocketCANBus, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("failed to find CAN interface %s: %w", ifname, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create CAN socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind CAN socket to %s: %w", ifname, err)
	}

	// non-blocking so the runtime poller can interrupt Read on Close
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to configure CAN socket: %w", err)
	}

	return &SocketCANBus{
		file: os.NewFile(uintptr(fd), ifname),
	}, nil
}

// Send writes one frame to the socket.
func (b *SocketCANBus) Send(f vesc.Frame) error {
	buf, err := MarshalCANFrame(f)
	if err != nil {
		return err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if _, err := b.file.Write(buf); err != nil {
		if errors.Is(err, os.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("socketcan write: %w", err)
	}
	return nil
}

// Receive reads the next data frame, skipping remote and error frames.
func (b *SocketCANBus) Receive() (vesc.Frame, error) {
	buf := make([]byte, CANFrameSize)
	for {
		if _, err := io.ReadFull(b.file, buf); err != nil {
			if errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF) {
				return vesc.Frame{}, ErrClosed
			}
			return vesc.Frame{}, fmt.Errorf("%w: socketcan read: %v", ErrClosed, err)
		}

		f, ok, err := UnmarshalCANFrame(buf)
		if err != nil {
			return vesc.Frame{}, err
		}
		if !ok {
			continue
		}
		f.Timestamp = time.Now()
		return f, nil
	}
}

// Close closes the socket, unblocking a pending Receive.
func (b *SocketCANBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.file.Close()
	})
	return err
}
