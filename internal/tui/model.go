package tui

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/satishydv/meshaid-mvp/internal/discovery"
	"github.com/satishydv/meshaid-mvp/internal/engine"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

// Source is the mesh as seen by the terminal UI.
type Source interface {
	LocalPeerID() string
	Nickname() string
	Send(kind protocol.Kind, text string, loc *protocol.Location, manualLocation string) (protocol.Message, bool)
	History() []protocol.Message
	Stats() engine.Stats
	SubscribeMessages(engine.MessageHandler)
	SubscribePeers(engine.PeerHandler)
}

type (
	tickMsg  time.Time
	peersMsg []discovery.PeerRecord
	meshMsg  protocol.Message
)

const flashTicks = 6

type model struct {
	src       Source
	localID   string
	peers     []discovery.PeerRecord
	history   []protocol.Message
	kinds     []protocol.KindMeta
	kindIdx   int
	viewport  viewport.Model
	textInput textinput.Model
	qr        string
	showQR    bool
	width     int
	height    int
	flashTick int
	ready     bool
}

func initialModel(src Source, qr string) model {
	ti := textinput.New()
	ti.Placeholder = "Describe the situation... (Tab: type, @place: location)"
	ti.Focus()
	ti.CharLimit = 280
	ti.Width = 40

	kinds := protocol.Kinds()
	return model{
		src:       src,
		localID:   src.LocalPeerID(),
		history:   src.History(),
		kinds:     kinds,
		kindIdx:   len(kinds) - 1,
		textInput: ti,
		qr:        qr,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tickMsg:
		if m.flashTick > 0 {
			m.flashTick--
		}
		return m, tick()

	case peersMsg:
		m.peers = sortPeers(msg)
		return m, nil

	case meshMsg:
		m.history = m.src.History()
		if msg.Type == protocol.KindSOS && msg.SenderID != m.localID {
			m.flashTick = flashTicks
		}
		m.refreshFeed()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			m.kindIdx = nextKind(m.kindIdx, len(m.kinds))
			return m, nil
		case tea.KeyCtrlQ:
			m.showQR = !m.showQR
			return m, nil
		case tea.KeyEnter:
			text, place := splitLocation(m.textInput.Value())
			if _, ok := m.src.Send(m.kinds[m.kindIdx].Kind, text, nil, place); ok {
				m.textInput.Reset()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		streamWidth, bodyHeight := m.layout()
		if !m.ready {
			m.viewport = viewport.New(streamWidth, bodyHeight)
			m.ready = true
		} else {
			m.viewport.Width = streamWidth
			m.viewport.Height = bodyHeight
		}
		m.textInput.Width = max(msg.Width-20, 10)
		m.refreshFeed()
	}

	m.textInput, tiCmd = m.textInput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *model) refreshFeed() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderFeed(m.history, m.localID, time.Now()))
	m.viewport.GotoTop()
}

// layout returns the stream width and the body height for the current window.
func (m model) layout() (int, int) {
	streamWidth := m.width * 7 / 10
	bodyHeight := m.height - 5
	return max(streamWidth, 20), max(bodyHeight, 3)
}

// sortPeers returns online peers first, then by nickname.
func sortPeers(peers []discovery.PeerRecord) []discovery.PeerRecord {
	out := slices.Clone(peers)
	slices.SortStableFunc(out, func(a, b discovery.PeerRecord) int {
		if a.Online() != b.Online() {
			if a.Online() {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Nickname, b.Nickname)
	})
	return out
}

func nextKind(idx, n int) int {
	return (idx + 1) % n
}

// splitLocation separates a trailing " @place" from the message text.
func splitLocation(input string) (text, place string) {
	i := strings.LastIndex(input, " @")
	if i < 0 {
		return input, ""
	}
	return strings.TrimSpace(input[:i]), strings.TrimSpace(input[i+2:])
}

// StartTUI runs the terminal UI until the user quits. Mesh callbacks are
// forwarded into the program as messages.
func StartTUI(src Source, qr string) error {
	p := tea.NewProgram(initialModel(src, qr), tea.WithAltScreen())
	// Program.Send blocks until the event loop runs. Local sends deliver from
	// inside Update, so message notifications must not wait on it.
	src.SubscribeMessages(func(msg protocol.Message) { go p.Send(meshMsg(msg)) })
	go src.SubscribePeers(func(peers []discovery.PeerRecord) { p.Send(peersMsg(peers)) })
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
