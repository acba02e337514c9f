// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package canbus moves vesc.Frame values over the CAN transports the CLI
// supports: SLCAN serial adapters, Linux SocketCAN and a WebSocket bridge.
package canbus

import (
	"errors"
	"fmt"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

// ErrClosed is returned by Send and Receive once the bus has been closed or
// the underlying link has gone away.
var ErrClosed = errors.New("canbus: bus closed")

// Bus is a bidirectional classical CAN link.
//
// Send may be called from several goroutines. Receive blocks until a frame
// arrives or the bus is closed; only one goroutine should call it. Receive
// errors wrapping ErrClosed end the link, any other error concerns a single
// malformed frame and the caller may keep receiving.
type Bus interface {
	Send(f vesc.Frame) error
	Receive() (vesc.Frame, error)
	Close() error
}

// Kinds of bus accepted by Open
const (
	KindSLCAN     = "slcan"
	KindSocketCAN = "socketcan"
	KindWebSocket = "websocket"
)

// Options selects and configures a transport.
type Options struct {
	Kind string

	// SLCAN
	Port    string
	Baud    int
	Bitrate int

	// SocketCAN
	Interface string

	// WebSocket
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// Open opens the bus described by opts. The returned string describes the
// link for status lines.
func Open(opts Options) (Bus, string, error) {
	switch opts.Kind {
	case KindSLCAN:
		bus, err := OpenSLCAN(opts.Port, opts.Baud, opts.Bitrate)
		if err != nil {
			return nil, "", err
		}
		return bus, fmt.Sprintf("SLCAN: %s @ %d baud, %d bit/s", opts.Port, opts.Baud, opts.Bitrate), nil

	case KindSocketCAN:
		bus, err := OpenSocketCAN(opts.Interface)
		if err != nil {
			return nil, "", err
		}
		return bus, fmt.Sprintf("SocketCAN: %s", opts.Interface), nil

	case KindWebSocket:
		bus, err := OpenWebSocket(opts.URL, opts.Username, opts.Password, opts.SkipSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return bus, fmt.Sprintf("WebSocket: %s", opts.URL), nil
	}

	return nil, "", fmt.Errorf("unsupported bus kind %q (use %s, %s or %s)",
		opts.Kind, KindSLCAN, KindSocketCAN, KindWebSocket)
}
