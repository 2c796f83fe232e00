package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/ofarias/chatpagos/internal/directory"
	"github.com/ofarias/chatpagos/internal/extract"
	"github.com/ofarias/chatpagos/internal/ledger"
)

// Unmatched is a confirmation marker that found no ledger record.
type Unmatched struct {
	Marker extract.Marker
	Reason string
	Hint   string
}

// ConfirmReport summarizes one confirmation run.
type ConfirmReport struct {
	Source           string
	Blocks           int
	Skipped          int
	Markers          int
	Confirmed        int
	AlreadyConfirmed int

	Unmatched []Unmatched
	Errors    []*extract.BlockError
}

// ProcessConfirmations extracts confirmation markers from one export
// and flips the confirmed flag on exactly-matching ledger records.
// There is no marker gate because confirmations for old payments arrive
// late. Unmatched markers never create records and never touch any
// field besides the confirmed flag of their exact match.
func (p *Processor) ProcessConfirmations(ctx context.Context, r io.Reader, source string, rules Rules) (*ConfirmReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := extract.Extract(r, extract.ModeConfirmations, source)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}
	rep := &ConfirmReport{
		Source:  source,
		Blocks:  res.Blocks,
		Skipped: res.Skipped,
		Markers: len(res.Markers),
		Errors:  res.Errors,
	}

	stored, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	led := ledger.New(stored)

	for _, m := range res.Markers {
		changed, found := led.Confirm(m.Key)
		switch {
		case changed:
			rep.Confirmed++
		case found:
			rep.AlreadyConfirmed++
		default:
			u := Unmatched{Marker: m}
			u.Reason, u.Hint = explain(m, led, rules)
			rep.Unmatched = append(rep.Unmatched, u)
			p.log.Warn().Str("key", m.Key.String()).Str("reason", u.Reason).Msg("confirmation unmatched")
		}
	}

	if rep.Confirmed > 0 {
		if err := p.store.Replace(ctx, led.Records()); err != nil {
			return nil, fmt.Errorf("persist ledger: %w", err)
		}
	}
	p.log.Info().
		Str("source", source).
		Int("confirmed", rep.Confirmed).
		Int("already", rep.AlreadyConfirmed).
		Int("unmatched", len(rep.Unmatched)).
		Msg("confirmations applied")
	return rep, nil
}

// explain classifies an unmatched marker and points at the nearest
// thing the ledger or the directory does hold.
func explain(m extract.Marker, led *ledger.Ledger, rules Rules) (reason, hint string) {
	var sameGroup []ledger.PaymentRecord
	for _, r := range led.Records() {
		if r.GroupID == m.Key.GroupID {
			sameGroup = append(sameGroup, r)
		}
	}
	if len(sameGroup) > 0 {
		reason = "no payment at this timestamp"
		if near, ok := nearest(m.Key, sameGroup); ok {
			hint = fmt.Sprintf("nearest payment for %s is %s %s", m.Key.GroupID, near.Date, near.Time)
		}
		return reason, hint
	}
	if _, known := rules.Directory.Lookup(m.Key.GroupID); known {
		return "group has no payments in the ledger", ""
	}
	reason = "unknown group id"
	if id, e, ok := closestEntry(m.Key.GroupID, rules.Directory); ok {
		hint = fmt.Sprintf("closest known group is %s (%s)", id, e.Name)
	}
	return reason, hint
}

// nearest picks the record closest in time to the marker, preferring
// records from the marker's own day.
func nearest(k ledger.Key, records []ledger.PaymentRecord) (ledger.PaymentRecord, bool) {
	want := ledger.PaymentRecord{Date: k.Date, Time: k.Time}.At()
	if want.IsZero() {
		return ledger.PaymentRecord{}, false
	}
	best := -1
	var bestGap time.Duration
	for i, r := range records {
		at := r.At()
		if at.IsZero() {
			continue
		}
		gap := at.Sub(want)
		if gap < 0 {
			gap = -gap
		}
		sameDay := r.Date == k.Date
		bestSameDay := best >= 0 && records[best].Date == k.Date
		switch {
		case best < 0:
		case sameDay && !bestSameDay:
		case sameDay == bestSameDay && gap < bestGap:
		default:
			continue
		}
		best, bestGap = i, gap
	}
	if best < 0 {
		return ledger.PaymentRecord{}, false
	}
	return records[best], true
}

// closestEntry finds the directory id nearest the unknown id by edit
// distance. Ids are short, so anything past two edits is noise.
func closestEntry(id string, dir *directory.Directory) (string, directory.Entry, bool) {
	bestID, bestDist := "", 3
	var bestEntry directory.Entry
	for known, e := range dir.Entries() {
		if d := levenshtein.ComputeDistance(id, known); d < bestDist {
			bestID, bestDist, bestEntry = known, d, e
		}
	}
	return bestID, bestEntry, bestID != ""
}
