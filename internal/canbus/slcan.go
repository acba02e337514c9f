// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

// slcanBitrates maps CAN bitrates to the Lawicel "Sn" setup codes.
var slcanBitrates = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// EncodeSLCAN renders f as an SLCAN transmit command including the
// trailing carriage return.
func EncodeSLCAN(f vesc.Frame) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	if f.Extended {
		fmt.Fprintf(&b, "T%08X", f.ID&canEffMask)
	} else {
		fmt.Fprintf(&b, "t%03X", f.ID&canStdMask)
	}
	b.WriteByte('0' + byte(len(f.Data)))
	for _, d := range f.Data {
		fmt.Fprintf(&b, "%02X", d)
	}
	b.WriteByte('\r')
	return b.String(), nil
}

// ParseSLCAN parses one received SLCAN line (without the terminator).
// Lines that are not data frames, such as acknowledgements and remote
// frames, return ok == false.
func ParseSLCAN(line string) (f vesc.Frame, ok bool, err error) {
	if line == "" {
		return vesc.Frame{}, false, nil
	}

	var idLen int
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		idLen = 8
		f.Extended = true
	default:
		return vesc.Frame{}, false, nil
	}

	if len(line) < 1+idLen+1 {
		return vesc.Frame{}, false, fmt.Errorf("slcan: short frame %q", line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return vesc.Frame{}, false, fmt.Errorf("slcan: bad identifier in %q: %w", line, err)
	}
	f.ID = uint32(id)

	dlc := int(line[1+idLen] - '0')
	if dlc < 0 || dlc > vesc.MaxDataSize {
		return vesc.Frame{}, false, fmt.Errorf("slcan: bad length in %q", line)
	}

	hexData := line[2+idLen:]
	if len(hexData) < dlc*2 {
		return vesc.Frame{}, false, fmt.Errorf("slcan: truncated data in %q", line)
	}
	// adapters with timestamps enabled append four hex digits
	f.Data, err = hex.DecodeString(hexData[:dlc*2])
	if err != nil {
		return vesc.Frame{}, false, fmt.Errorf("slcan: bad data in %q: %w", line, err)
	}

	if err := f.Validate(); err != nil {
		return vesc.Frame{}, false, err
	}
	return f, true, nil
}

// SLCANBus speaks the Lawicel ASCII protocol over a serial adapter.
type SLCANBus struct {
	rw     io.ReadWriteCloser
	reader *bufio.Reader

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenSLCAN opens a serial SLCAN adapter, sets the CAN bitrate and opens
// the channel.
func OpenSLCAN(portName string, baudRate, bitrate int) (*SLCANBus, error) {
	code, ok := slcanBitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("unsupported CAN bitrate %d", bitrate)
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	bus := NewSLCANBus(port)

	// close first in case the channel was left open by a previous session
	for _, setup := range []string{"C\r", "S" + string(code) + "\r", "O\r"} {
		if err := bus.writeString(setup); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to configure SLCAN adapter: %w", err)
		}
	}

	return bus, nil
}

// NewSLCANBus wraps an already configured SLCAN stream.
func NewSLCANBus(rw io.ReadWriteCloser) *SLCANBus {
	return &SLCANBus{
		rw:     rw,
		reader: bufio.NewReader(rw),
		closed: make(chan struct{}),
	}
}

// Send transmits one frame.
func (b *SLCANBus) Send(f vesc.Frame) error {
	line, err := EncodeSLCAN(f)
	if err != nil {
		return err
	}
	return b.writeString(line)
}

func (b *SLCANBus) writeString(s string) error {
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if _, err := io.WriteString(b.rw, s); err != nil {
		return fmt.Errorf("slcan write: %w", err)
	}
	return nil
}

// Receive returns the next data frame, skipping acknowledgements.
func (b *SLCANBus) Receive() (vesc.Frame, error) {
	for {
		line, err := b.reader.ReadString('\r')
		if err != nil {
			select {
			case <-b.closed:
				return vesc.Frame{}, ErrClosed
			default:
			}
			if errors.Is(err, io.EOF) {
				return vesc.Frame{}, ErrClosed
			}
			return vesc.Frame{}, fmt.Errorf("%w: slcan read: %v", ErrClosed, err)
		}

		line = strings.TrimLeft(strings.TrimSuffix(line, "\r"), "\a\n")
		f, ok, err := ParseSLCAN(line)
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

// Close closes the channel on the adapter and the serial port.
func (b *SLCANBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.writeMu.Lock()
		io.WriteString(b.rw, "C\r")
		b.writeMu.Unlock()

		close(b.closed)
		err = b.rw.Close()
	})
	return err
}
