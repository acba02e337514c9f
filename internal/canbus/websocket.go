// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

// WebSocketBus exchanges binary messages holding one or more can_frame
// records with a remote CAN bridge.
type WebSocketBus struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	// records not yet returned from the last message
	pending []byte
	closed  bool // Track if connection has failed/closed
}

// OpenWebSocket dials a CAN bridge with optional HTTP Basic auth.
func OpenWebSocket(wsURL, username, password string, skipSSLVerify bool) (*WebSocketBus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewWebSocketBus(conn), nil
}

// NewWebSocketBus wraps an established connection.
func NewWebSocketBus(conn *websocket.Conn) *WebSocketBus {
	return &WebSocketBus{conn: conn}
}

// Send writes f as a single-record binary message.
func (w *WebSocketBus) Send(f vesc.Frame) error {
	buf, err := MarshalCANFrame(f)
	if err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Receive returns the next data frame. Text messages and trailing partial
// records are ignored.
func (w *WebSocketBus) Receive() (vesc.Frame, error) {
	for {
		if w.closed {
			return vesc.Frame{}, ErrClosed
		}

		for len(w.pending) >= CANFrameSize {
			record := w.pending[:CANFrameSize]
			w.pending = w.pending[CANFrameSize:]

			f, ok, err := UnmarshalCANFrame(record)
			if err != nil {
				return vesc.Frame{}, err
			}
			if ok {
				f.Timestamp = time.Now()
				return f, nil
			}
		}

		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return vesc.Frame{}, ErrClosed
			}
			return vesc.Frame{}, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.pending = data
	}
}

// Close closes the connection.
func (w *WebSocketBus) Close() error {
	return w.conn.Close()
}
