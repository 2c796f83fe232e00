// Package tui is the full-screen terminal front end: dashboard, export
// picker, run reports, and the ledger browser.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/ofarias/chatpagos/internal/config"
	"github.com/ofarias/chatpagos/internal/directory"
	"github.com/ofarias/chatpagos/internal/ledger"
	"github.com/ofarias/chatpagos/internal/service"
	"github.com/ofarias/chatpagos/internal/shift"
)

// App ties the views together.
type App struct {
	ctx  context.Context
	proc *service.Processor
	cfg  config.Config
	log  zerolog.Logger

	state  appState
	modal  modalState
	status string

	records []ledger.PaymentRecord
	marker  time.Time

	cursor        int
	confirmedOnly bool

	picker *filePicker

	lastReport  *service.Report
	lastConfirm *service.ConfirmReport

	width  int
	height int
}

type appState string

const (
	viewDashboard     appState = "dashboard"
	viewPicker        appState = "picker"
	viewReport        appState = "report"
	viewConfirmReport appState = "confirmReport"
	viewLedger        appState = "ledger"
)

type modalState string

const (
	modalNone         modalState = ""
	modalConfirmClear modalState = "confirmClear"
)

type runMode int

const (
	runPayments runMode = iota
	runConfirmations
)

func New(ctx context.Context, cfg config.Config, proc *service.Processor, log zerolog.Logger) *App {
	return &App{
		ctx:    ctx,
		proc:   proc,
		cfg:    cfg,
		log:    log,
		state:  viewDashboard,
		width:  80,
		height: 24,
	}
}

func (a *App) Init() tea.Cmd {
	return a.refresh()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		switch a.state {
		case viewPicker:
			return a.handlePickerKey(m)
		case viewLedger:
			return a.handleLedgerKey(m)
		case viewReport, viewConfirmReport:
			switch m.String() {
			case "q", "ctrl+c":
				return a, tea.Quit
			case "esc", "enter":
				a.state = viewDashboard
			}
			return a, nil
		}
		return a.handleDashboardKey(m)
	case stateMsg:
		a.records = m.records
		a.marker = m.marker
		if a.cursor >= len(a.records) {
			a.cursor = 0
		}
	case pickedMsg:
		a.state = viewDashboard
		a.status = "processing " + filepath.Base(m.path) + "..."
		if m.mode == runConfirmations {
			return a, a.runConfirmationsCmd(m.path)
		}
		return a, a.runPaymentsCmd(m.path)
	case paymentsDoneMsg:
		a.lastReport = m.report
		a.state = viewReport
		if m.report.AlreadyProcessed {
			a.status = "already processed, nothing merged"
		} else {
			a.status = fmt.Sprintf("appended %d, duplicates %d, conflicts %d", m.report.Appended, m.report.Duplicates, len(m.report.Conflicts))
		}
		return a, a.refresh()
	case confirmDoneMsg:
		a.lastConfirm = m.report
		a.state = viewConfirmReport
		a.status = fmt.Sprintf("confirmed %d, already %d, unmatched %d", m.report.Confirmed, m.report.AlreadyConfirmed, len(m.report.Unmatched))
		return a, a.refresh()
	case statusMsg:
		a.status = string(m)
	case errMsg:
		a.status = "error: " + m.Error()
		a.log.Error().Err(m.error).Msg("ui action failed")
	}
	return a, nil
}

func (a *App) handleDashboardKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "p":
		a.openPicker(runPayments)
	case "c":
		a.openPicker(runConfirmations)
	case "l":
		a.state = viewLedger
		a.cursor = 0
		a.confirmedOnly = false
	case "r":
		a.status = ""
		return a, a.refresh()
	case "x":
		a.modal = modalConfirmClear
	}
	return a, nil
}

func (a *App) handlePickerKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.state = viewDashboard
		a.picker = nil
		return a, nil
	}
	if a.picker == nil {
		a.state = viewDashboard
		return a, nil
	}
	cmd, done := a.picker.Update(m)
	if done {
		a.picker = nil
	}
	return a, cmd
}

func (a *App) handleLedgerKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.state = viewDashboard
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.visibleRecords())-1 {
			a.cursor++
		}
	case "f":
		a.confirmedOnly = !a.confirmedOnly
		a.cursor = 0
	}
	return a, nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalConfirmClear:
		switch m.String() {
		case "y", "Y":
			a.modal = modalNone
			return a, a.clearCmd()
		case "n", "N", "esc":
			a.modal = modalNone
		}
	}
	return a, nil
}

func (a *App) openPicker(mode runMode) {
	items, err := exportItems(a.cfg.Exports.Dir)
	if err != nil {
		a.status = "error: " + err.Error()
		return
	}
	if len(items) == 0 {
		a.status = "no .txt exports in " + a.cfg.Exports.Dir
		return
	}
	title := "Select payments export"
	if mode == runConfirmations {
		title = "Select confirmations export"
	}
	a.picker = newFilePicker(title, items, func(it fileItem) tea.Msg {
		return pickedMsg{mode: mode, path: it.Path}
	})
	a.state = viewPicker
}

// visibleRecords applies the confirmed-only toggle of the ledger view.
func (a *App) visibleRecords() []ledger.PaymentRecord {
	if !a.confirmedOnly {
		return a.records
	}
	var out []ledger.PaymentRecord
	for _, r := range a.records {
		if r.Confirmed {
			out = append(out, r)
		}
	}
	return out
}

// commands

func (a *App) refresh() tea.Cmd {
	return func() tea.Msg {
		records, err := a.proc.Ledger(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		marker, err := a.proc.Marker(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return stateMsg{records: records, marker: marker}
	}
}

func (a *App) runPaymentsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		rules, err := a.loadRules()
		if err != nil {
			return errMsg{err}
		}
		f, err := os.Open(path)
		if err != nil {
			return errMsg{fmt.Errorf("open %s: %w", path, err)}
		}
		defer f.Close()
		rep, err := a.proc.ProcessPayments(a.ctx, f, filepath.Base(path), rules)
		if err != nil {
			return errMsg{err}
		}
		return paymentsDoneMsg{report: rep}
	}
}

func (a *App) runConfirmationsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		rules, err := a.loadRules()
		if err != nil {
			return errMsg{err}
		}
		f, err := os.Open(path)
		if err != nil {
			return errMsg{fmt.Errorf("open %s: %w", path, err)}
		}
		defer f.Close()
		rep, err := a.proc.ProcessConfirmations(a.ctx, f, filepath.Base(path), rules)
		if err != nil {
			return errMsg{err}
		}
		return confirmDoneMsg{report: rep}
	}
}

func (a *App) clearCmd() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if err := a.proc.ClearAll(a.ctx); err != nil {
				return errMsg{err}
			}
			a.cursor = 0
			return statusMsg("ledger cleared")
		},
		a.refresh(),
	)
}

// loadRules rereads the configuration so group and shift edits apply on
// the next run without a restart.
func (a *App) loadRules() (service.Rules, error) {
	cfg, err := config.Load()
	if err != nil {
		return service.Rules{}, fmt.Errorf("load config: %w", err)
	}
	return buildRules(cfg)
}

func buildRules(cfg config.Config) (service.Rules, error) {
	entries := make(map[string]directory.Entry, len(cfg.Groups))
	for id, g := range cfg.Groups {
		entries[id] = directory.Entry{Name: g.Name, Branch: g.Branch}
	}
	morning, err := shift.NewRange(cfg.Shifts.Morning.Start, cfg.Shifts.Morning.End)
	if err != nil {
		return service.Rules{}, fmt.Errorf("morning shift: %w", err)
	}
	evening, err := shift.NewRange(cfg.Shifts.Evening.Start, cfg.Shifts.Evening.End)
	if err != nil {
		return service.Rules{}, fmt.Errorf("evening shift: %w", err)
	}
	return service.Rules{
		Directory:  directory.New(entries),
		Boundaries: shift.Boundaries{Morning: morning, Evening: evening},
	}, nil
}

// messages

type stateMsg struct {
	records []ledger.PaymentRecord
	marker  time.Time
}

type pickedMsg struct {
	mode runMode
	path string
}

type paymentsDoneMsg struct {
	report *service.Report
}

type confirmDoneMsg struct {
	report *service.ConfirmReport
}

type statusMsg string

type errMsg struct{ error }
