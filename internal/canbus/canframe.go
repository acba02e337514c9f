// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"encoding/binary"
	"fmt"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

// Linux struct can_frame, classical CAN only.
//
//	0..3  can_id, little-endian, with EFF/RTR/ERR flags
//	4     can_dlc
//	5..7  padding
//	8..15 data
const (
	CANFrameSize = 16

	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canErrFlag = 0x20000000
	canEffMask = 0x1FFFFFFF
	canStdMask = 0x7FF
)

// MarshalCANFrame encodes f in the SocketCAN can_frame layout.
func MarshalCANFrame(f vesc.Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	id := f.ID
	if f.Extended {
		id |= canEffFlag
	}

	buf := make([]byte, CANFrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = uint8(len(f.Data))
	copy(buf[8:], f.Data)
	return buf, nil
}

// UnmarshalCANFrame decodes one can_frame record. Remote and error frames
// are reported with ok == false and should be skipped.
func UnmarshalCANFrame(data []byte) (f vesc.Frame, ok bool, err error) {
	if len(data) < CANFrameSize {
		return vesc.Frame{}, false, fmt.Errorf("canbus: need %d bytes, got %d", CANFrameSize, len(data))
	}

	id := binary.LittleEndian.Uint32(data[0:4])
	if id&(canRtrFlag|canErrFlag) != 0 {
		return vesc.Frame{}, false, nil
	}

	dlc := int(data[4])
	if dlc > vesc.MaxDataSize {
		return vesc.Frame{}, false, vesc.ErrInvalidLen
	}

	f.Extended = id&canEffFlag != 0
	if f.Extended {
		f.ID = id & canEffMask
	} else {
		f.ID = id & canStdMask
	}
	f.Data = append([]byte(nil), data[8:8+dlc]...)
	return f, true, nil
}
