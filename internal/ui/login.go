package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/reeltrack/internal/auth"
)

// CodeMsg delivers the device code to the login view.
type CodeMsg struct {
	Code   auth.DeviceCode
	Cancel func()
}

// DoneMsg delivers the terminal session result.
type DoneMsg struct {
	Result auth.Result
}

type copiedMsg struct{ err error }

type openedMsg struct{ err error }

// Indirection for tests.
var (
	writeClipboard = clipboard.WriteAll
	openBrowser    = openURL
)

// LoginModel renders the device-code sign-in.
type LoginModel struct {
	theme   Theme
	styles  Styles
	keys    keyMap
	spinner spinner.Model

	code     auth.DeviceCode
	hasCode  bool
	cancel   func()
	result   auth.Result
	finished bool
	notice   string
	width    int
}

// NewLoginModel builds the login view with the named theme.
func NewLoginModel(themeName string) LoginModel {
	theme := GetTheme(themeName)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Styles().AccentText
	return LoginModel{
		theme:   theme,
		styles:  theme.Styles(),
		keys:    DefaultKeyMap(),
		spinner: sp,
	}
}

// Result returns the session result once the view has finished.
func (m LoginModel) Result() (auth.Result, bool) {
	return m.result, m.finished
}

// Init implements tea.Model.
func (m LoginModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case CodeMsg:
		m.code = msg.Code
		m.cancel = msg.Cancel
		m.hasCode = true
		return m, nil

	case DoneMsg:
		m.result = msg.Result
		m.finished = true
		return m, tea.Quit

	case copiedMsg:
		if msg.err != nil {
			m.notice = "copy failed: " + msg.err.Error()
		} else {
			m.notice = "code copied to clipboard"
		}
		return m, nil

	case openedMsg:
		if msg.err != nil {
			m.notice = "open failed: " + msg.err.Error()
		} else {
			m.notice = "opened " + m.code.VerificationURL
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m LoginModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m, cancelAndQuit(m.cancel)

	case key.Matches(msg, m.keys.Copy):
		if !m.hasCode {
			return m, nil
		}
		code := m.code.UserCode
		return m, func() tea.Msg {
			return copiedMsg{err: writeClipboard(code)}
		}

	case key.Matches(msg, m.keys.Open):
		if !m.hasCode || m.code.VerificationURL == "" {
			return m, nil
		}
		url := m.code.VerificationURL
		return m, func() tea.Msg {
			return openedMsg{err: openBrowser(url)}
		}

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.styles = m.theme.Styles()
		m.spinner.Style = m.styles.AccentText
		return m, nil
	}
	return m, nil
}

// cancelAndQuit runs cancel off the event loop. Cancelling a session reports
// back through Program.Send, which would block if called from Update.
func cancelAndQuit(cancel func()) tea.Cmd {
	return func() tea.Msg {
		if cancel != nil {
			cancel()
		}
		return tea.Quit()
	}
}

// View implements tea.Model.
func (m LoginModel) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Title.Render("reeltrack sign-in"))
	b.WriteString("\n\n")

	switch {
	case m.finished:
		b.WriteString(m.renderResult())
	case !m.hasCode:
		b.WriteString(m.spinner.View() + " " + s.MutedText.Render("requesting device code..."))
	default:
		b.WriteString(s.Text.Render("Visit ") + s.AccentText.Render(m.code.VerificationURL) + s.Text.Render(" and enter:"))
		b.WriteString("\n\n")
		b.WriteString(s.Code.Render(m.code.UserCode))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " " + s.StatusStyle(auth.StatusPolling.String()).Render("waiting"))
		b.WriteString(" " + s.MutedText.Render(fmt.Sprintf("code expires in %s", m.code.ExpiresIn)))
	}

	if m.notice != "" && !m.finished {
		b.WriteString("\n")
		b.WriteString(s.WarningText.Render(m.notice))
	}
	if !m.finished {
		b.WriteString(s.Footer.Render(m.helpLine()))
	}

	box := s.Box
	if m.width > 0 {
		box = box.MaxWidth(m.width)
	}
	return box.Render(b.String()) + "\n"
}

func (m LoginModel) renderResult() string {
	s := m.styles
	badge := s.StatusStyle(m.result.Status.String()).Render(m.result.Status.String())
	if m.result.OK {
		return lipgloss.JoinHorizontal(lipgloss.Top, badge, " ", s.SuccessText.Render("signed in"))
	}
	msg := "sign-in did not complete"
	if m.result.Err != nil && m.result.Status != auth.StatusCancelled {
		msg = m.result.Err.Error()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, badge, " ", s.DangerText.Render(msg))
}

func (m LoginModel) helpLine() string {
	parts := make([]string, 0, 4)
	for _, b := range m.keys.help() {
		h := b.Help()
		parts = append(parts, m.styles.AccentText.Render(h.Key)+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// openURL launches the platform browser.
func openURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
