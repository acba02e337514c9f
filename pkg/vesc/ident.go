// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

// ComposeID packs a node id and a message type into an extended frame
// identifier. Both values must lie in [0,255].
func ComposeID(node, msgType int) (uint32, error) {
	if node < 0 || node > MaxNodeID {
		return 0, &RangeError{Field: "node", Value: float64(node)}
	}
	if msgType < 0 || msgType > MaxMsgType {
		return 0, &RangeError{Field: "message type", Value: float64(msgType)}
	}
	return uint32(node) | uint32(msgType)<<TypeShift, nil
}

// DecomposeID splits an identifier into node id and message type.
// Bits above bit 15 are ignored.
func DecomposeID(id uint32) (node, msgType uint8) {
	return uint8(id & NodeMask), uint8((id >> TypeShift) & NodeMask)
}
