// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR record layout: [msg_type, {0: node, 1..n: fields in wire order}]

// MarshalRecordCBOR encodes a record as a compact CBOR message.
func MarshalRecordCBOR(r Record) ([]byte, error) {
	payload := map[int]interface{}{
		0: uint64(r.Node()),
	}
	for i, f := range Fields(r) {
		payload[i+1] = f.Value
	}

	data, err := cbor.Marshal([]interface{}{uint64(r.MsgType()), payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR record: %w", err)
	}
	return data, nil
}

// UnmarshalRecordCBOR decodes a message produced by MarshalRecordCBOR.
func UnmarshalRecordCBOR(data []byte) (Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}

	var msg []interface{}
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(msg) != 2 {
		return nil, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	msgType, ok := msg[0].(uint64)
	if !ok || msgType > MaxMsgType {
		return nil, fmt.Errorf("invalid message type %v", msg[0])
	}

	raw, ok := msg[1].(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("expected map payload, got %T", msg[1])
	}
	payload := make(map[int]interface{}, len(raw))
	for key, val := range raw {
		switch k := key.(type) {
		case uint64:
			payload[int(k)] = val
		case int64:
			payload[int(k)] = val
		default:
			return nil, fmt.Errorf("expected integer map key, got %T", key)
		}
	}

	node, ok := getMapUint(payload, 0)
	if !ok || node > MaxNodeID {
		return nil, fmt.Errorf("missing or invalid node")
	}

	var values []float64
	for i := 1; ; i++ {
		v, ok := getMapFloat(payload, i)
		if !ok {
			break
		}
		values = append(values, v)
	}

	rec, err := RecordFromFields(uint8(node), uint8(msgType), values)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("unsupported record type %d with %d fields", msgType, len(values))
	}
	return rec, nil
}

func getMapUint(m map[int]interface{}, key int) (uint64, bool) {
	switch val := m[key].(type) {
	case uint64:
		return val, true
	case int64:
		if val >= 0 {
			return uint64(val), true
		}
	}
	return 0, false
}

func getMapFloat(m map[int]interface{}, key int) (float64, bool) {
	switch val := m[key].(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}
