// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ElwinBoots/vescstat/internal/canbus"
	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

const (
	batchInterval = 50 * time.Millisecond
	minBackoff    = 1 * time.Second
	maxBackoff    = 30 * time.Second
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI showing live VESC telemetry",
	Long: `Monitor VESC controllers on the bus via an interactive terminal UI.

Every node that broadcasts status frames gets a row with its latest
telemetry: electrical RPM, motor current, duty cycle, temperatures, input
voltage, consumed charge and energy, tachometer and the time since its last
frame.

Features:
  - Per-node telemetry table
  - Statistics bar (frame rate, error rate)
  - Event log with decode errors and implausible values
  - Current setpoint for the selected node (c to enter, s to send 0 A)
  - Automatic reconnection on connection loss

Arrow keys select a node. Supports SLCAN, SocketCAN and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// connectionManager handles connection lifecycle and reconnection
// msgSender delivers messages to the TUI; *tea.Program implements it.
type msgSender interface {
	Send(msg tea.Msg)
}

type connectionManager struct {
	bus      canbus.Bus
	connInfo string
	mu       sync.RWMutex
	p        msgSender
	done     chan struct{}

	// open is OpenBus, replaced in tests
	open func() (canbus.Bus, string, error)
	// firstRetry is the delay before the first reconnect attempt (minBackoff when zero)
	firstRetry time.Duration
}

func (cm *connectionManager) getBus() canbus.Bus {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.bus
}

func (cm *connectionManager) setBus(bus canbus.Bus, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.bus = bus
	cm.connInfo = connInfo
}

// send encodes cmd for node and transmits it on the current bus.
func (cm *connectionManager) send(node int, cmd vesc.Command) (vesc.Frame, error) {
	frame, err := vesc.Encode(node, cmd)
	if err != nil {
		return vesc.Frame{}, err
	}
	bus := cm.getBus()
	if bus == nil {
		return vesc.Frame{}, canbus.ErrClosed
	}
	if err := bus.Send(frame); err != nil {
		return vesc.Frame{}, err
	}
	logger.Info("command sent",
		zap.Int("node", node),
		zap.String("command", vesc.FormatCommand(cmd)),
		zap.Stringer("frame", frame))
	return frame, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	bus, connInfo, err := OpenBus()
	if err != nil {
		return err
	}

	cm := &connectionManager{
		bus:      bus,
		connInfo: connInfo,
		done:     make(chan struct{}),
		open:     OpenBus,
	}

	m := initialMonitorModel(cm, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	_, runErr := p.Run()
	close(cm.done)
	if b := cm.getBus(); b != nil {
		b.Close()
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// readerLoop handles reading from the bus with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		if cm.readFromBus() {
			cm.p.Send(connectionLostMsg{})
			if !cm.reconnect() {
				return
			}
		}
	}
}

// readFromBus decodes frames from the current bus until it fails.
// Returns true if the connection was lost, false if shutdown was requested.
func (cm *connectionManager) readFromBus() bool {
	bus := cm.getBus()
	if bus == nil {
		return true
	}

	batchChan := make(chan monitorDataMsg, 100)
	readerDone := make(chan struct{})

	// Reader goroutine: decodes frames into the batch channel
	go func() {
		defer close(readerDone)
		for {
			f, err := bus.Receive()
			if err != nil {
				if errors.Is(err, canbus.ErrClosed) {
					return
				}
				select {
				case batchChan <- monitorDataMsg{frame: f, decodeErr: err}:
				default:
				}
				continue
			}

			select {
			case batchChan <- decodeForMonitor(f):
			default:
			}
		}
	}()

	// Batch sender goroutine: forwards updates to the TUI at a fixed rate
	go func() {
		ticker := time.NewTicker(batchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				if batch := drainBatch(batchChan); len(batch.messages) > 0 {
					cm.p.Send(batch)
				}
			}
		}
	}()

	<-readerDone

	select {
	case <-cm.done:
		return false
	default:
		return true
	}
}

// decodeForMonitor decodes and validates one frame for the TUI.
func decodeForMonitor(f vesc.Frame) monitorDataMsg {
	msg := monitorDataMsg{frame: f}
	msg.rec, msg.decodeErr = vesc.DecodeFrame(f)
	if msg.rec != nil {
		msg.validationErrors = vesc.ValidateRecord(msg.rec)
	}
	return msg
}

// drainBatch collects every message currently queued on ch.
func drainBatch(ch <-chan monitorDataMsg) monitorBatchMsg {
	var batch monitorBatchMsg
	for {
		select {
		case msg := <-ch:
			batch.messages = append(batch.messages, msg)
		default:
			return batch
		}
	}
}

// nextBackoff doubles d up to maxBackoff
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// reconnect attempts to reopen the bus with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *connectionManager) reconnect() bool {
	if bus := cm.getBus(); bus != nil {
		bus.Close()
	}
	cm.setBus(nil, "")

	backoff := cm.firstRetry
	if backoff <= 0 {
		backoff = minBackoff
	}
	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		bus, connInfo, err := cm.open()
		if err == nil {
			cm.setBus(bus, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		logger.Debug("reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))
		backoff = nextBackoff(backoff)
	}
}
