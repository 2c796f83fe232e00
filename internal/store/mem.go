package store

import (
	"context"
	"sync"
	"time"

	"github.com/ofarias/chatpagos/internal/ledger"
)

// Mem is an in-memory Store for tests and throwaway runs.
type Mem struct {
	mu      sync.Mutex
	records []ledger.PaymentRecord
	marker  time.Time
}

func NewMem() *Mem { return &Mem{} }

func (m *Mem) Load(ctx context.Context) ([]ledger.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.PaymentRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *Mem) Replace(ctx context.Context, records []ledger.PaymentRecord) error {
	if err := CheckUnique(records); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]ledger.PaymentRecord(nil), records...)
	return nil
}

func (m *Mem) LastProcessed(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marker, nil
}

func (m *Mem) SetLastProcessed(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marker = t
	return nil
}

func (m *Mem) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.marker = time.Time{}
	return nil
}

func (m *Mem) Close() error { return nil }
