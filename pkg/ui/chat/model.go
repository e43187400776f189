package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const wheelStep = 3

type chatMessage struct {
	role    string
	content string
	at      time.Time
}

type replyMsg struct {
	text string
	ok   bool
}

type bootTickMsg struct{}

type model struct {
	ctx     context.Context
	session *Session

	theme     theme
	spinner   spinner.Model
	input     textinput.Model
	viewport  viewport.Model
	messages  []chatMessage
	width     int
	height    int
	isReady   bool
	waiting   bool
	closed    bool
	booting   bool
	bootStep  int
	followLog bool
	runtime   RuntimeInfo
	replies   int
}

func newModel(ctx context.Context, session *Session, info RuntimeInfo) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(amber)

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Nhắn như khách hàng, ví dụ: đi Nhật 5 người 10 ngày"
	in.Focus()
	in.CharLimit = 0

	vp := viewport.New(80, 12)

	return &model{
		ctx:       ctx,
		session:   session,
		theme:     defaultTheme(),
		spinner:   spin,
		input:     in,
		viewport:  vp,
		width:     100,
		height:    28,
		booting:   true,
		followLog: true,
		runtime:   info,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(bootTickCmd(), waitForReplyCmd(m.session))
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case bootTickMsg:
		if !m.booting {
			return m, nil
		}

		m.bootStep++
		if m.bootStep < len(bootScriptLines())+1 {
			return m, bootTickCmd()
		}

		m.booting = false
		return m, textinput.Blink
	case replyMsg:
		if !typed.ok {
			m.closed = true
			m.waiting = false
			return m, nil
		}
		m.waiting = false
		m.replies++
		m.messages = append(m.messages, chatMessage{role: "assistant", content: typed.text, at: time.Now()})
		m.refreshViewport(false)
		return m, waitForReplyCmd(m.session)
	case tea.MouseMsg:
		if !m.booting {
			m.handleViewportMouse(typed)
		}
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

		if m.booting {
			return m, nil
		}

		if handled := m.handleViewportKey(typed); handled {
			return m, nil
		}

		if typed.String() == "enter" {
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if isExitCommand(text) {
				return m, tea.Quit
			}
			if m.closed {
				m.messages = append(m.messages, chatMessage{role: "error", content: "pipeline stopped", at: time.Now()})
				m.refreshViewport(true)
				return m, nil
			}

			m.messages = append(m.messages, chatMessage{role: "user", content: text, at: time.Now()})
			m.input.SetValue("")
			m.waiting = true
			m.followLog = true
			m.refreshViewport(true)
			return m, tea.Batch(m.spinner.Tick, sendCmd(m.ctx, m.session, text))
		}
	}

	m.input, cmd = m.input.Update(msg)

	if typed, ok := msg.(spinner.TickMsg); ok {
		if !m.waiting {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	}

	return m, cmd
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.booting {
		return m.bootView()
	}

	header := m.theme.header.Width(m.width - 2).Render("🧳 " + m.title())
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"conversation:%s · provider:%s · store:%s · quiet:%s · turns:%d · replies:%d",
		displayOrNA(m.runtime.ConversationID),
		displayOrNA(m.runtime.Provider),
		displayOrNA(m.runtime.Store),
		m.runtime.QuietPeriod,
		conversationTurns(m.messages),
		m.replies,
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("💡 Enter send  ·  /photo /sticker /follow simulate events  ·  PgUp/PgDn scroll  ·  🛑 Ctrl+C/Esc quit")
	if m.waiting {
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s ⏳ waiting for the quiet period to close the turn...", m.spinner.View()))
	}
	if m.closed {
		status = m.theme.statusErr.Render("🚨 pipeline stopped")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("🙋 Khách")+" "+m.theme.hint.Render("(type /exit, quit, or :q)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) title() string {
	if brand := strings.TrimSpace(m.runtime.Brand); brand != "" {
		return brand + " Tour Desk"
	}
	return "Tour Desk"
}

func (m *model) resizeComponents() {
	w := m.width - 6
	if w < 50 {
		w = 50
	}
	h := m.height - 10
	if h < 8 {
		h = 8
	}

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	var sections []string
	for _, item := range m.messages {
		stamp := m.theme.stamp.Render(item.at.Format("15:04:05"))
		switch item.role {
		case "user":
			sections = append(sections, m.renderCard(
				m.theme.customerTag.Render("▛▚ [ 🙋 ] ▞▜")+" "+stamp,
				m.theme.customerBox.Width(m.viewport.Width).Render(strings.TrimSpace(item.content)),
			))
		case "assistant":
			sections = append(sections, m.renderCard(
				m.theme.botTag.Render("▛▚ [ 🧳 ] ▞▜")+" "+stamp,
				m.theme.botBox.Width(m.viewport.Width).Render(strings.TrimSpace(item.content)),
			))
		case "error":
			sections = append(sections, m.renderCard(
				m.theme.errorTag.Render("▛▚ [ERROR] ▞▜"),
				m.theme.errorBox.Width(m.viewport.Width).Render(strings.TrimSpace(item.content)),
			))
		}
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if previousOffset > maxOffset {
		previousOffset = maxOffset
	}
	m.viewport.SetYOffset(previousOffset)
}

func (m *model) renderCard(title string, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (m *model) bootView() string {
	header := m.theme.header.Width(m.width - 2).Render("🧳 " + m.title())
	meta := m.theme.headerMeta.Render("boot sequence")
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	script := bootScriptLines()
	count := min(m.bootStep, len(script))
	visible := make([]string, 0, count+1)
	for i := 0; i < count; i++ {
		visible = append(visible, m.theme.bootLine.Render(script[i]))
	}
	if m.bootStep > len(script) {
		visible = append(visible, m.theme.bootDone.Render("✅ tour desk online"))
	}

	body := m.theme.viewport.Width(m.width - 2).Render(strings.Join(visible, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, meta, line, body)
}

func bootTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(_ time.Time) tea.Msg {
		return bootTickMsg{}
	})
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

// handleViewportMouse scrolls on wheel events and reports whether msg was used.
func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(wheelStep)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(wheelStep)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func bootScriptLines() []string {
	return []string{
		"[BOOT] loading price catalog",
		"[BOOT] opening conversation store",
		"[BOOT] arming duplicate gate",
		"[BOOT] starting turn aggregator",
	}
}

func sendCmd(ctx context.Context, session *Session, text string) tea.Cmd {
	return func() tea.Msg {
		session.Send(ctx, text)
		return nil
	}
}

func waitForReplyCmd(session *Session) tea.Cmd {
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		text, ok := <-session.Replies()
		return replyMsg{text: text, ok: ok}
	}
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func conversationTurns(messages []chatMessage) int {
	count := 0
	for _, message := range messages {
		if message.role == "user" {
			count++
		}
	}

	return count
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
