package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/satishydv/meshaid-mvp/internal/discovery"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

var (
	// Colors
	colorGreen = lipgloss.Color("2")
	colorBlack = lipgloss.Color("0")
	colorGray  = lipgloss.Color("240")
	colorRed   = lipgloss.Color("196")
	colorWhite = lipgloss.Color("231")

	// Styles
	tabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(colorGray)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorBlack).
			Background(colorGreen).
			Padding(0, 1)

	alertStyle = lipgloss.NewStyle().
			Background(colorRed).
			Foreground(colorWhite).
			Bold(true).
			Padding(0, 1)

	flashStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorRed)

	onlineStyle  = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	offlineStyle = lipgloss.NewStyle().Foreground(colorGray)
	selfStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorGreen).
			Padding(0, 1)

	streamStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorGreen).
			Padding(0, 1)
)

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing System..."
	}

	streamWidth, bodyHeight := m.layout()
	sidebarWidth := max(m.width-streamWidth-4, 10)

	var sidebar string
	if m.showQR && m.qr != "" {
		sidebar = sidebarStyle.Width(sidebarWidth).Height(bodyHeight).Render("SCAN TO JOIN\n" + m.qr)
	} else {
		sidebar = m.renderSidebar(sidebarWidth, bodyHeight)
	}

	stream := streamStyle.Width(streamWidth).Height(bodyHeight).Render(m.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, stream, sidebar)
	if m.flashTick > 0 && m.flashTick%2 == 0 {
		body = flashStyle.Render(body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderKindTabs(),
		m.textInput.View(),
	)
}

func (m model) renderHeader() string {
	stats := m.src.Stats()
	bar := statusBarStyle.Render(fmt.Sprintf("MESHAID | %s | %d/%d peers online | %d messages",
		m.src.Nickname(), stats.PeersOnline, stats.PeersKnown, stats.Messages))
	if stats.ActiveSOS > 0 {
		bar = lipgloss.JoinHorizontal(lipgloss.Top, bar, alertStyle.Render(fmt.Sprintf("%d ACTIVE SOS", stats.ActiveSOS)))
	}
	return bar
}

func (m model) renderKindTabs() string {
	tabs := make([]string, 0, len(m.kinds))
	for i, k := range m.kinds {
		style := tabStyle
		if i == m.kindIdx {
			style = style.Foreground(lipgloss.Color(k.Color)).Bold(true).Underline(true)
		}
		tabs = append(tabs, style.Render(k.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) renderSidebar(width, height int) string {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("PEER", "STATUS", "SEEN").
		Width(width)

	now := time.Now()
	for _, p := range m.peers {
		t.Row(p.Nickname, statusLabel(p.Status), formatSeen(p.LastSeen, now))
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row <= 0 || row > len(m.peers) {
			return lipgloss.NewStyle()
		}
		if m.peers[row-1].Online() {
			return onlineStyle
		}
		return offlineStyle
	})

	content := lipgloss.JoinVertical(lipgloss.Left,
		"ID: "+m.localID,
		"",
		"NETWORK:",
		t.Render(),
		"",
		"Tab: type  Ctrl+Q: QR  Esc: quit",
	)
	return sidebarStyle.Width(width).Height(height).Render(content)
}

// renderFeed lays out msgs in canonical order: SOS first, then newest first.
func renderFeed(msgs []protocol.Message, localID string, now time.Time) string {
	if len(msgs) == 0 {
		return "Welcome to MeshAid!\nMessages from nearby peers will appear here.\n"
	}

	var sb strings.Builder
	for _, msg := range protocol.Canonical(msgs) {
		sb.WriteString(renderLine(msg, localID, now))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderLine(msg protocol.Message, localID string, now time.Time) string {
	sender := msg.Sender
	if msg.SenderID == localID {
		sender = selfStyle.Render("You")
	}

	label := string(msg.Type)
	color := lipgloss.Color("7")
	if info, ok := msg.Type.Info(); ok {
		label, color = info.Label, lipgloss.Color(info.Color)
	}
	tag := lipgloss.NewStyle().Foreground(color).Bold(true).Render("[" + label + "]")

	line := fmt.Sprintf("%s %s %s: %s", formatSeen(msg.Timestamp, now), tag, sender, msg.Payload.Text)
	switch loc := msg.Payload.Location; {
	case loc != nil:
		line += fmt.Sprintf(" (%.4f, %.4f)", loc.Lat, loc.Lng)
	case msg.Payload.ManualLocation != "":
		line += " @ " + msg.Payload.ManualLocation
	}

	if msg.Type == protocol.KindSOS {
		return alertStyle.Render(line)
	}
	return line
}

// formatSeen renders a unix millisecond timestamp relative to now.
func formatSeen(ms int64, now time.Time) string {
	d := now.Sub(time.UnixMilli(ms))
	switch {
	case d < 5*time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return time.UnixMilli(ms).Format("15:04")
	}
}

func statusLabel(s discovery.Status) string {
	return strings.ToUpper(string(s))
}
