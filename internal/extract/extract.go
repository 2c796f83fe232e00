package extract

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ofarias/chatpagos/internal/ledger"
	"github.com/ofarias/chatpagos/internal/normalize"
)

// Mode selects what an export pass looks for.
type Mode int

const (
	ModePayments Mode = iota
	ModeConfirmations
)

// BlockError reports one message block that could not be extracted.
type BlockError struct {
	Line   int
	Text   string
	Reason string
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Marker is one confirmation extracted from a confirmation export. It
// points at a ledger record by natural key.
type Marker struct {
	Key    ledger.Key
	Sender string
	Line   int
}

// Result is everything one pass over an export produced.
type Result struct {
	Records []ledger.PaymentRecord
	Markers []Marker
	Errors  []*BlockError
	Blocks  int
	Skipped int
	Newest  time.Time
}

var (
	headerRe  = regexp.MustCompile(`^\[(\d{2}/\d{2}/\d{2}), (\d{2}:\d{2}:\d{2})\] ([^:]+): (.+)$`)
	groupRe   = regexp.MustCompile(`(?i)^\s*grupo\b\s*:?\s*(.+)$`)
	idRe      = regexp.MustCompile(`(?i)^\s*id\b\s*:?\s*(.+)$`)
	paymentRe = regexp.MustCompile(`(?i)^\s*pago\b\s*:?\s*(.+)$`)
	savingsRe = regexp.MustCompile(`(?i)^\s*ahorro\b\s*:?\s*(.+)$`)
	branchRe  = regexp.MustCompile(`(?i)^\s*sucursal\b\s*:?\s*(.+)$`)
	payNumRe  = regexp.MustCompile(`(?i)^\s*(?:n[úu]mero\s+de\s+pago|num\.?\s+de\s+pago|no\.?\s+de\s+pago|n\s+pago)\b\s*:?\s*(.+)$`)
)

// System notices WhatsApp injects into exports; matched against folded
// block text.
var systemNotices = []string{
	"extremo a extremo",
	"creaste el grupo",
	"creo este grupo",
	"created this group",
	"imagen omitida",
	"media omitted",
}

type block struct {
	line   int
	date   string
	clock  string
	sender string
	body   []string
}

// Extract runs one pass over a chat export. Message blocks start at a
// header line and run to the next header; lines before the first header
// are ignored. Block-level problems land in Result.Errors and never stop
// the pass.
func Extract(r io.Reader, mode Mode, source string) (*Result, error) {
	res := &Result{}
	var cur *block
	flush := func() {
		if cur == nil {
			return
		}
		consume(res, cur, mode, source)
		cur = nil
	}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if m := headerRe.FindStringSubmatch(text); m != nil {
			flush()
			cur = &block{line: line, date: m[1], clock: m[2], sender: strings.TrimSpace(m[3]), body: []string{m[4]}}
			continue
		}
		if cur != nil {
			cur.body = append(cur.body, text)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	flush()
	return res, nil
}

func consume(res *Result, b *block, mode Mode, source string) {
	res.Blocks++
	if at, err := time.Parse(ledger.DateLayout+" "+ledger.TimeLayout, b.date+" "+b.clock); err == nil && at.After(res.Newest) {
		res.Newest = at
	}

	folded := normalize.Fold(strings.Join(b.body, "\n"))
	for _, notice := range systemNotices {
		if strings.Contains(folded, notice) {
			res.Skipped++
			return
		}
	}

	switch mode {
	case ModeConfirmations:
		marker, skipped, blockErr := confirmMarker(b)
		if blockErr != nil {
			res.Errors = append(res.Errors, blockErr)
			return
		}
		if skipped {
			res.Skipped++
			return
		}
		res.Markers = append(res.Markers, marker)
	default:
		records, skipped, blockErr := paymentRecords(b, source)
		if blockErr != nil {
			res.Errors = append(res.Errors, blockErr)
			return
		}
		if skipped {
			res.Skipped++
			return
		}
		res.Records = append(res.Records, records...)
	}
}

type pendingPayment struct {
	payment decimal.Decimal
	savings decimal.Decimal
	payNum  string
}

func paymentRecords(b *block, source string) ([]ledger.PaymentRecord, bool, *BlockError) {
	var (
		rawID       string
		idLine      int
		name        string
		branch      string
		leadSavings decimal.Decimal
		hasLead     bool
		entries     []pendingPayment
	)
	for i, line := range b.body {
		switch {
		case payNumRe.MatchString(line):
			v := strings.TrimSpace(payNumRe.FindStringSubmatch(line)[1])
			if !isDigits(v) {
				return nil, false, &BlockError{Line: b.line + i, Text: strings.TrimSpace(line), Reason: "invalid payment number"}
			}
			if len(entries) > 0 {
				entries[len(entries)-1].payNum = v
			}
		case paymentRe.MatchString(line):
			amt, err := normalize.Amount(paymentRe.FindStringSubmatch(line)[1])
			if err != nil {
				return nil, false, &BlockError{Line: b.line + i, Text: strings.TrimSpace(line), Reason: "invalid amount"}
			}
			entry := pendingPayment{payment: amt, savings: decimal.Zero}
			if len(entries) == 0 && hasLead {
				entry.savings = leadSavings
			}
			entries = append(entries, entry)
		case savingsRe.MatchString(line):
			amt, err := normalize.Amount(savingsRe.FindStringSubmatch(line)[1])
			if err != nil {
				return nil, false, &BlockError{Line: b.line + i, Text: strings.TrimSpace(line), Reason: "invalid amount"}
			}
			// Label order is not guaranteed; an Ahorro before the first
			// Pago belongs to the record that Pago starts.
			if len(entries) > 0 {
				entries[len(entries)-1].savings = amt
			} else {
				leadSavings, hasLead = amt, true
			}
		case idRe.MatchString(line):
			if rawID == "" {
				rawID = strings.TrimSpace(idRe.FindStringSubmatch(line)[1])
				idLine = b.line + i
			}
		case groupRe.MatchString(line):
			if name == "" {
				name = normalize.Name(groupRe.FindStringSubmatch(line)[1])
			}
		case branchRe.MatchString(line):
			if branch == "" {
				branch = normalize.Branch(branchRe.FindStringSubmatch(line)[1])
			}
		}
	}
	switch {
	case len(entries) == 0 && rawID == "":
		return nil, true, nil
	case len(entries) == 0:
		return nil, false, &BlockError{Line: b.line, Text: strings.TrimSpace(b.body[0]), Reason: "missing payment amount"}
	case rawID == "":
		return nil, false, &BlockError{Line: b.line, Text: strings.TrimSpace(b.body[0]), Reason: "missing group id"}
	}
	groupID, err := normalize.PadID(rawID)
	if err != nil {
		return nil, false, &BlockError{Line: idLine, Text: rawID, Reason: "invalid group id"}
	}

	records := make([]ledger.PaymentRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, ledger.PaymentRecord{
			GroupID:       groupID,
			GroupName:     name,
			Branch:        branch,
			Date:          b.date,
			Time:          b.clock,
			Payment:       e.payment,
			Savings:       e.savings,
			PaymentNumber: e.payNum,
			SourceFile:    source,
		})
	}
	return records, false, nil
}

// confirmMarker reads the group id out of a confirmation block.
// Confirmation exports forward the original payment message, so any block
// with an extractable id is a marker; blocks without one are chat noise.
func confirmMarker(b *block) (Marker, bool, *BlockError) {
	for i, line := range b.body {
		if !idRe.MatchString(line) {
			continue
		}
		rawID := strings.TrimSpace(idRe.FindStringSubmatch(line)[1])
		groupID, err := normalize.PadID(rawID)
		if err != nil {
			return Marker{}, false, &BlockError{Line: b.line + i, Text: rawID, Reason: "invalid group id"}
		}
		return Marker{
			Key:    ledger.Key{GroupID: groupID, Date: b.date, Time: b.clock},
			Sender: b.sender,
			Line:   b.line,
		}, false, nil
	}
	return Marker{}, true, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
