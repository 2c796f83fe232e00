package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/ofarias/chatpagos/internal/extract"
	"github.com/ofarias/chatpagos/internal/ledger"
	"github.com/ofarias/chatpagos/internal/shift"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

func (a *App) View() string {
	var body string
	switch a.state {
	case viewPicker:
		if a.picker != nil {
			body = a.picker.View(a.width, a.height)
		} else {
			body = a.renderDashboard()
		}
	case viewReport:
		body = a.renderReport()
	case viewConfirmReport:
		body = a.renderConfirmReport()
	case viewLedger:
		body = a.renderLedger()
	default:
		body = a.renderDashboard()
	}
	if a.modal != modalNone {
		body += "\n\n" + a.renderModal()
	}
	return body
}

func (a *App) renderDashboard() string {
	title := titleStyle.Render("ChatPagos")

	confirmed := 0
	byShift := map[string]int{}
	total := decimal.Zero
	for _, r := range a.records {
		if r.Confirmed {
			confirmed++
		}
		byShift[r.Shift]++
		total = total.Add(r.Total())
	}

	marker := "never"
	if !a.marker.IsZero() {
		marker = a.marker.Format(ledger.DateLayout + " " + ledger.TimeLayout)
	}

	body := fmt.Sprintf("Records: %d  Confirmed: %d  Total: %s", len(a.records), confirmed, money(total))
	body += fmt.Sprintf("\nShifts: morning %d  evening %d  unclassified %d",
		byShift[shift.Morning], byShift[shift.Evening], byShift[shift.Unclassified])
	body += "\nLast processed: " + marker
	body += fmt.Sprintf("\nStorage: %s (%s)", a.cfg.Storage.Path, a.cfg.Storage.Backend)
	body += "\nExports: " + a.cfg.Exports.Dir
	body += "\n\n" + helpStyle.Render("[p] Process payments  [c] Process confirmations  [l] Ledger  [r] Refresh  [x] Clear all  [q] Quit")
	if a.status != "" {
		body += "\n" + a.status
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderReport() string {
	rep := a.lastReport
	if rep == nil {
		return a.renderDashboard()
	}
	title := titleStyle.Render("Payments - " + rep.Source)
	body := fmt.Sprintf("Blocks: %d  Noise skipped: %d  Extracted: %d", rep.Blocks, rep.Skipped, rep.Extracted)
	if rep.AlreadyProcessed {
		body += "\nAlready processed: newest message is not past the marker."
	} else {
		body += fmt.Sprintf("\nAppended: %d  Duplicates: %d  Conflicts: %d", rep.Appended, rep.Duplicates, len(rep.Conflicts))
		body += fmt.Sprintf("\nLedger now holds %d records.", rep.Records)
	}
	if !rep.Newest.IsZero() {
		body += "\nNewest message: " + rep.Newest.Format(ledger.DateLayout+" "+ledger.TimeLayout)
	}
	for _, c := range rep.Conflicts {
		body += fmt.Sprintf("\nconflict %s %s %s: kept %s, discarded %s",
			c.Stored.GroupID, c.Stored.Date, c.Stored.Time, money(c.Stored.Total()), money(c.Discarded.Total()))
	}
	for _, m := range rep.Misses {
		body += fmt.Sprintf("\nnot in directory: %s (%s %s)", m.GroupID, m.Date, m.Time)
	}
	body += renderBlockErrors(rep.Errors)
	body += "\n\n" + helpStyle.Render("[esc] Back  [q] Quit")
	if a.status != "" {
		body += "\n" + a.status
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderConfirmReport() string {
	rep := a.lastConfirm
	if rep == nil {
		return a.renderDashboard()
	}
	title := titleStyle.Render("Confirmations - " + rep.Source)
	body := fmt.Sprintf("Blocks: %d  Noise skipped: %d  Markers: %d", rep.Blocks, rep.Skipped, rep.Markers)
	body += fmt.Sprintf("\nConfirmed: %d  Already confirmed: %d  Unmatched: %d", rep.Confirmed, rep.AlreadyConfirmed, len(rep.Unmatched))
	for _, u := range rep.Unmatched {
		body += fmt.Sprintf("\nunmatched %s %s %s: %s", u.Marker.Key.GroupID, u.Marker.Key.Date, u.Marker.Key.Time, u.Reason)
		if u.Hint != "" {
			body += " (" + u.Hint + ")"
		}
	}
	body += renderBlockErrors(rep.Errors)
	body += "\n\n" + helpStyle.Render("[esc] Back  [q] Quit")
	if a.status != "" {
		body += "\n" + a.status
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderLedger() string {
	title := titleStyle.Render("Ledger")
	rows := a.visibleRecords()

	filter := "all"
	if a.confirmedOnly {
		filter = "confirmed only"
	}
	body := fmt.Sprintf("%d records (%s)\n", len(rows), filter)

	page := a.height - 8
	if page < 5 {
		page = 5
	}
	start := 0
	if a.cursor >= page {
		start = a.cursor - page + 1
	}
	end := min(start+page, len(rows))
	for i := start; i < end; i++ {
		r := rows[i]
		marker := " "
		if i == a.cursor {
			marker = "▶"
		}
		conf := ""
		if r.Confirmed {
			conf = "SI"
		}
		body += fmt.Sprintf("%s %s %s  %-6s  %-20s %10s %10s %10s  %-12s %s\n",
			marker, r.Date, r.Time, r.GroupID, clip(r.GroupName, 20),
			money(r.Payment), money(r.Savings), money(r.Total()), r.Shift, conf)
	}
	if end < len(rows) {
		body += fmt.Sprintf("(+%d more)\n", len(rows)-end)
	}
	body += "\n" + helpStyle.Render("[f] Toggle confirmed  [esc] Back  [q] Quit")
	if a.status != "" {
		body += "\n" + a.status
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalConfirmClear:
		return titleStyle.Render("Clear all records?") + "\nThis deletes every payment and the processing marker.\n[y] Yes  [n] No"
	default:
		return ""
	}
}

func renderBlockErrors(errs []*extract.BlockError) string {
	if len(errs) == 0 {
		return ""
	}
	out := ""
	for i, e := range errs {
		if i == 5 {
			out += fmt.Sprintf("\n(+%d more errors)", len(errs)-i)
			break
		}
		out += "\n" + e.Error()
	}
	return out
}

func money(d decimal.Decimal) string {
	return "$" + d.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
