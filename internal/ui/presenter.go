package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/reeltrack/internal/auth"
)

// ProgramPresenter forwards session events into a running Bubble Tea
// program.
type ProgramPresenter struct {
	program *tea.Program
}

var _ auth.Presenter = (*ProgramPresenter)(nil)

// NewProgramPresenter wraps p.
func NewProgramPresenter(p *tea.Program) *ProgramPresenter {
	return &ProgramPresenter{program: p}
}

// Present implements auth.Presenter.
func (p *ProgramPresenter) Present(code auth.DeviceCode, cancel func()) {
	p.program.Send(CodeMsg{Code: code, Cancel: cancel})
}

// Done implements auth.Presenter.
func (p *ProgramPresenter) Done(r auth.Result) {
	p.program.Send(DoneMsg{Result: r})
}

// TextPresenter prints the code for non-interactive terminals.
type TextPresenter struct {
	w io.Writer
}

var _ auth.Presenter = (*TextPresenter)(nil)

// NewTextPresenter writes to w.
func NewTextPresenter(w io.Writer) *TextPresenter {
	return &TextPresenter{w: w}
}

// Present implements auth.Presenter.
func (p *TextPresenter) Present(code auth.DeviceCode, _ func()) {
	_, _ = fmt.Fprintf(p.w, "Visit %s and enter code %s (expires in %s)\n", code.VerificationURL, code.UserCode, code.ExpiresIn)
}

// Done implements auth.Presenter.
func (p *TextPresenter) Done(r auth.Result) {
	if r.OK {
		_, _ = fmt.Fprintln(p.w, "Signed in.")
		return
	}
	if r.Err != nil && r.Status != auth.StatusCancelled {
		_, _ = fmt.Fprintf(p.w, "Sign-in %s: %v\n", r.Status, r.Err)
		return
	}
	_, _ = fmt.Fprintf(p.w, "Sign-in %s.\n", r.Status)
}

// LoginOptions configure RunLogin.
type LoginOptions struct {
	Theme  string
	Input  io.Reader
	Output io.Writer

	// Start builds the session with the given presenter and starts it.
	Start func(ctx context.Context, presenter auth.Presenter) (*auth.Session, error)
}

// RunLogin runs the interactive sign-in view until the session finishes or
// the user dismisses it. Dismissal cancels the session.
func RunLogin(ctx context.Context, opts LoginOptions) (auth.Result, error) {
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	p := tea.NewProgram(NewLoginModel(opts.Theme), programOpts...)

	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sessions := make(chan *auth.Session, 1)
	go func() {
		s, err := opts.Start(startCtx, NewProgramPresenter(p))
		if err != nil && s == nil {
			p.Send(DoneMsg{Result: auth.Result{Status: auth.StatusFailed, Err: err}})
		}
		sessions <- s
	}()

	final, runErr := p.Run()
	cancel()
	s := <-sessions
	if s == nil {
		if m, ok := final.(LoginModel); ok {
			if res, done := m.Result(); done {
				return res, nil
			}
		}
		if runErr == nil {
			runErr = errors.New("login view closed before the session started")
		}
		return auth.Result{Status: auth.StatusFailed}, fmt.Errorf("run login view: %w", runErr)
	}

	s.Cancel()
	res, err := s.Wait(context.Background())
	if err != nil {
		return res, err
	}
	if runErr != nil && !res.OK {
		return res, fmt.Errorf("run login view: %w", runErr)
	}
	return res, nil
}
