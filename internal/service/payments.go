package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ofarias/chatpagos/internal/extract"
	"github.com/ofarias/chatpagos/internal/ledger"
)

// Conflict pairs a stored record with a discarded candidate sharing its
// key but not its content. The stored side always wins.
type Conflict struct {
	Stored    ledger.PaymentRecord
	Discarded ledger.PaymentRecord
}

// Report summarizes one payment run.
type Report struct {
	Source           string
	AlreadyProcessed bool
	Newest           time.Time

	Blocks     int
	Skipped    int
	Extracted  int
	Appended   int
	Duplicates int

	Conflicts []Conflict
	Misses    []ledger.PaymentRecord
	Errors    []*extract.BlockError

	Records int
}

// ProcessPayments extracts payment records from one export and merges
// them into the stored ledger. The marker advances to the export's
// newest message timestamp only after a successful persist; an export
// whose newest timestamp does not pass the marker is reported
// AlreadyProcessed and changes nothing.
func (p *Processor) ProcessPayments(ctx context.Context, r io.Reader, source string, rules Rules) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := extract.Extract(r, extract.ModePayments, source)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}
	rep := &Report{
		Source:    source,
		Newest:    res.Newest,
		Blocks:    res.Blocks,
		Skipped:   res.Skipped,
		Extracted: len(res.Records),
		Errors:    res.Errors,
	}
	if res.Newest.IsZero() {
		return rep, nil
	}

	last, err := p.store.LastProcessed(ctx)
	if err != nil {
		return nil, fmt.Errorf("read marker: %w", err)
	}
	if !last.IsZero() && !res.Newest.After(last) {
		rep.AlreadyProcessed = true
		p.log.Info().Str("source", source).Time("newest", res.Newest).Time("marker", last).Msg("export already processed")
		return rep, nil
	}

	stored, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	led := ledger.New(stored)

	now := time.Now().UTC()
	for _, rec := range res.Records {
		rec.Shift = rules.Boundaries.Classify(rec.At())
		name, branch, miss := rules.Directory.Resolve(rec.GroupID, rec.GroupName, rec.Branch)
		rec.GroupName, rec.Branch = name, branch
		rec.CreatedAt = now
		if miss {
			rep.Misses = append(rep.Misses, rec)
			p.log.Warn().Str("group", rec.GroupID).Str("date", rec.Date).Str("time", rec.Time).Msg("group not in directory")
		}
		if led.Append(rec) {
			rep.Appended++
			continue
		}
		prev, _ := led.Find(rec.Key())
		if prev.SameContent(rec) {
			rep.Duplicates++
			continue
		}
		rep.Conflicts = append(rep.Conflicts, Conflict{Stored: prev, Discarded: rec})
		p.log.Warn().Str("key", rec.Key().String()).Msg("conflicting duplicate discarded")
	}

	if err := p.store.Replace(ctx, led.Records()); err != nil {
		return nil, fmt.Errorf("persist ledger: %w", err)
	}
	if err := p.store.SetLastProcessed(ctx, res.Newest); err != nil {
		return nil, fmt.Errorf("advance marker: %w", err)
	}
	rep.Records = led.Len()
	p.log.Info().
		Str("source", source).
		Int("appended", rep.Appended).
		Int("duplicates", rep.Duplicates).
		Int("conflicts", len(rep.Conflicts)).
		Int("errors", len(rep.Errors)).
		Msg("payments merged")
	return rep, nil
}
