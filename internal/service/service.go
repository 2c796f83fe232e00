// Package service runs chat exports against the stored ledger: payment
// runs merge new records, confirmation runs flip the confirmed flag.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ofarias/chatpagos/internal/directory"
	"github.com/ofarias/chatpagos/internal/ledger"
	"github.com/ofarias/chatpagos/internal/shift"
	"github.com/ofarias/chatpagos/internal/store"
)

// Processor owns the store. All runs and reads are serialized through
// one mutex; the ledger is single-writer.
type Processor struct {
	mu    sync.Mutex
	store store.Store
	log   zerolog.Logger
}

func New(st store.Store, log zerolog.Logger) *Processor {
	return &Processor{store: st, log: log}
}

// Rules is the lookup context for one run. Callers rebuild it from
// configuration before each run, so directory and shift edits apply
// without a restart.
type Rules struct {
	Directory  *directory.Directory
	Boundaries shift.Boundaries
}

// Ledger returns every stored record in ledger order.
func (p *Processor) Ledger(ctx context.Context) ([]ledger.PaymentRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Load(ctx)
}

// Confirmed returns the confirmed slice of the ledger, in ledger order.
func (p *Processor) Confirmed(ctx context.Context) ([]ledger.PaymentRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	records, err := p.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	var confirmed []ledger.PaymentRecord
	for _, r := range records {
		if r.Confirmed {
			confirmed = append(confirmed, r)
		}
	}
	return confirmed, nil
}

// Marker returns the newest processed message timestamp, zero when no
// payment run has completed yet.
func (p *Processor) Marker(ctx context.Context) (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.LastProcessed(ctx)
}

// ClearAll wipes records and the marker. Group directory and shift
// configuration are untouched.
func (p *Processor) ClearAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	p.log.Info().Msg("ledger cleared")
	return nil
}
