// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxSetpointAmps = 60.0
	staleAfter      = 2 * time.Second
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// eventLogEntry is one line of the event log
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// nodeTelemetry holds the latest record of each status type for a node
type nodeTelemetry struct {
	node     uint8
	records  map[uint8]vesc.Record
	frames   uint64
	lastSeen time.Time
	silent   bool
}

// value returns a field of the latest record of msgType, if any
func (n *nodeTelemetry) value(msgType uint8, key string) (float64, bool) {
	rec, ok := n.records[msgType]
	if !ok {
		return 0, false
	}
	for _, f := range vesc.Fields(rec) {
		if f.Key == key {
			return f.Value, true
		}
	}
	return 0, false
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connMgr  *connectionManager
	connInfo string

	nodes    map[uint8]*nodeTelemetry
	nodeList []uint8 // table row order
	table    table.Model

	stats         *vesc.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int

	// Current setpoint entry
	currentInput textinput.Model
	editing      bool

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type monitorDataMsg struct {
	frame            vesc.Frame
	rec              vesc.Record
	decodeErr        error
	validationErrors []vesc.ValidationError
}

type monitorBatchMsg struct {
	messages []monitorDataMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

var telemetryColumns = []table.Column{
	{Title: "Node", Width: 5},
	{Title: "ERPM", Width: 8},
	{Title: "Current", Width: 9},
	{Title: "Duty", Width: 7},
	{Title: "FET", Width: 7},
	{Title: "Motor", Width: 7},
	{Title: "V in", Width: 7},
	{Title: "I in", Width: 8},
	{Title: "Ah", Width: 8},
	{Title: "Wh", Width: 8},
	{Title: "Tach", Width: 9},
	{Title: "Seen", Width: 6},
}

func initialMonitorModel(connMgr *connectionManager, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "2.5"
	ti.CharLimit = 8
	ti.Width = 10

	t := table.New(
		table.WithColumns(telemetryColumns),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12"))
	t.SetStyles(styles)

	return monitorModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		nodes:         make(map[uint8]*nodeTelemetry),
		table:         t,
		stats:         vesc.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		currentInput:  ti,
		width:         100,
		height:        30,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateTableSize()

	case monitorTickMsg:
		m.stats.CalculateRates()
		m.refreshRows(time.Time(msg))
		return m, monitorTickCmd()

	case monitorBatchMsg:
		for _, data := range msg.messages {
			m.processMonitorData(data)
		}
		m.refreshRows(time.Now())

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected: "+msg.connInfo, false)
	}

	if m.editing {
		var cmd tea.Cmd
		m.currentInput, cmd = m.currentInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			m.stopEditing()
			return m, nil
		case "enter":
			m.submitCurrent()
			m.stopEditing()
			return m, nil
		}
		var cmd tea.Cmd
		m.currentInput, cmd = m.currentInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "c":
		if _, ok := m.selectedNode(); ok {
			m.editing = true
			m.currentInput.SetValue("")
			return m, m.currentInput.Focus()
		}
		return m, nil

	case "s":
		if node, ok := m.selectedNode(); ok {
			m.sendCurrent(node, 0)
		}
		return m, nil

	case "r":
		m.stats.Reset()
		m.addLogEntry("Statistics reset", false)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *monitorModel) stopEditing() {
	m.editing = false
	m.currentInput.Blur()
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("VESC MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit c=set current s=stop r=reset", connStatus)))
	s.WriteString("\n\n")

	// Node table
	if len(m.nodeList) == 0 {
		s.WriteString(boxStyle.Render(warningStyle.Render("Waiting for status frames...")))
	} else {
		s.WriteString(boxStyle.Render(m.table.View()))
	}
	s.WriteString("\n")

	// Setpoint entry
	if m.editing {
		node, _ := m.selectedNode()
		s.WriteString(fmt.Sprintf(" %s %s A  %s\n",
			statsLabelStyle.Render(fmt.Sprintf("Current for node %d:", node)),
			m.currentInput.View(),
			headerStyle.Render("enter=send esc=cancel")))
	}
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, headerStyle, warningStyle, errorStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	var validPercent, errorPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidRecords) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalFrames)
	}

	errorText := statsValueStyle.Render("0.0%")
	if errorPercent > 0 {
		errorText = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), errorText,
		statsLabelStyle.Render("Nodes:"), statsValueStyle.Render(fmt.Sprintf("%d", len(m.nodeList))),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderEventLog(statsLabelStyle, headerStyle, warningStyle, errorStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

// telemetryRow renders one table row. Missing values are shown as "-".
func telemetryRow(n *nodeTelemetry, now time.Time) table.Row {
	field := func(msgType uint8, key, format string) string {
		v, ok := n.value(msgType, key)
		if !ok {
			return "-"
		}
		return fmt.Sprintf(format, v)
	}

	return table.Row{
		strconv.Itoa(int(n.node)),
		field(vesc.MsgStatus, "erpm", "%.0f"),
		field(vesc.MsgStatus, "current", "%.1f A"),
		field(vesc.MsgStatus, "duty_cycle", "%.3f"),
		field(vesc.MsgStatus4, "temp_fet", "%.1fC"),
		field(vesc.MsgStatus4, "temp_motor", "%.1fC"),
		field(vesc.MsgStatus5, "voltage_in", "%.1f V"),
		field(vesc.MsgStatus4, "current_in", "%.1f A"),
		field(vesc.MsgStatus2, "amp_hours", "%.3f"),
		field(vesc.MsgStatus3, "watt_hours", "%.2f"),
		field(vesc.MsgStatus5, "tachometer", "%.0f"),
		formatAge(now.Sub(n.lastSeen)),
	}
}

// formatAge renders the time since a node's last frame compactly
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0.0s"
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) processMonitorData(msg monitorDataMsg) {
	m.stats.Update(msg.frame, msg.rec, msg.decodeErr, msg.validationErrors)

	if msg.decodeErr != nil {
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		return
	}
	if msg.rec == nil {
		return
	}

	node := msg.rec.Node()
	telem, ok := m.nodes[node]
	if !ok {
		telem = &nodeTelemetry{node: node, records: make(map[uint8]vesc.Record)}
		m.nodes[node] = telem
		m.nodeList = append(m.nodeList, node)
		sort.Slice(m.nodeList, func(i, j int) bool { return m.nodeList[i] < m.nodeList[j] })
		m.addLogEntry(fmt.Sprintf("Node %d discovered", node), false)
	}

	if telem.silent {
		telem.silent = false
		m.addLogEntry(fmt.Sprintf("Node %d is back", node), false)
	}

	telem.records[msg.rec.MsgType()] = msg.rec
	telem.frames++
	telem.lastSeen = msg.frame.Timestamp
	if telem.lastSeen.IsZero() {
		telem.lastSeen = time.Now()
	}

	for _, err := range msg.validationErrors {
		m.addLogEntry(fmt.Sprintf("Node %d %s: %s", node, vesc.FormatStatusType(msg.rec.MsgType()), err.Message), true)
	}
}

// refreshRows rebuilds the table rows and logs nodes that went quiet.
func (m *monitorModel) refreshRows(now time.Time) {
	rows := make([]table.Row, 0, len(m.nodeList))
	for _, node := range m.nodeList {
		telem := m.nodes[node]
		if !telem.silent && now.Sub(telem.lastSeen) > staleAfter {
			telem.silent = true
			m.addLogEntry(fmt.Sprintf("Node %d silent for %s", node, formatAge(now.Sub(telem.lastSeen))), true)
		}
		rows = append(rows, telemetryRow(telem, now))
	}
	m.table.SetRows(rows)
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *monitorModel) submitCurrent() {
	node, ok := m.selectedNode()
	if !ok {
		return
	}

	text := strings.TrimSpace(m.currentInput.Value())
	if text == "" {
		text = m.currentInput.Placeholder
	}
	amps, err := strconv.ParseFloat(text, 64)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid current value: %s", text), true)
		return
	}
	if amps < -maxSetpointAmps || amps > maxSetpointAmps {
		m.addLogEntry(fmt.Sprintf("Current must be between %.0f and %.0f A", -maxSetpointAmps, maxSetpointAmps), true)
		return
	}

	m.sendCurrent(node, amps)
}

func (m *monitorModel) sendCurrent(node uint8, amps float64) {
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return
	}

	cmd := vesc.SetCurrent{Amps: amps}
	if _, err := m.connMgr.send(int(node), cmd); err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to send command: %v", err), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Sent %s to node %d", vesc.FormatCommand(cmd), node), false)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *monitorModel) selectedNode() (uint8, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.nodeList) {
		return 0, false
	}
	return m.nodeList[idx], true
}

func (m *monitorModel) updateTableSize() {
	tableHeight := m.height - 18
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.table.SetHeight(tableHeight)
}
