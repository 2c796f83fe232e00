package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ofarias/chatpagos/internal/ledger"
)

// ErrConflict is returned when a persisted batch would violate the
// natural-key uniqueness of the ledger.
var ErrConflict = errors.New("store: duplicate natural key")

// Store is the ordered-record persistence contract shared by all
// backends. Replace is a full atomic swap: on error the previously
// stored state must remain intact. LastProcessed is the marker payment
// runs advance; the zero time means unset.
type Store interface {
	Load(ctx context.Context) ([]ledger.PaymentRecord, error)
	Replace(ctx context.Context, records []ledger.PaymentRecord) error
	LastProcessed(ctx context.Context) (time.Time, error)
	SetLastProcessed(ctx context.Context, t time.Time) error
	Clear(ctx context.Context) error
	Close() error
}

// CheckUnique validates a batch against the natural-key invariant before
// it is written. Backends use it as the shared backstop.
func CheckUnique(records []ledger.PaymentRecord) error {
	seen := make(map[ledger.Key]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.Key()]; dup {
			return fmt.Errorf("%w: %s", ErrConflict, r.Key())
		}
		seen[r.Key()] = struct{}{}
	}
	return nil
}
