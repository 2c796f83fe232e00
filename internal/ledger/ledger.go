package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Capture timestamp layouts used by the WhatsApp export format.
const (
	DateLayout = "02/01/06"
	TimeLayout = "15:04:05"
)

// Key is the natural identity of a payment: one group reports at most one
// payment per captured timestamp.
type Key struct {
	GroupID string
	Date    string
	Time    string
}

func (k Key) String() string {
	return k.GroupID + "|" + k.Date + "|" + k.Time
}

// PaymentRecord is one payment extracted from a chat export.
type PaymentRecord struct {
	GroupID       string
	GroupName     string
	Branch        string
	Date          string
	Time          string
	Payment       decimal.Decimal
	Savings       decimal.Decimal
	PaymentNumber string
	Shift         string
	Confirmed     bool
	SourceFile    string
	CreatedAt     time.Time
}

// ID derives a stable identifier from the natural key, so reloading the
// same ledger never changes row identities.
func (r PaymentRecord) ID() string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("payment:"+r.Key().String())).String()
}

func (r PaymentRecord) Key() Key {
	return Key{GroupID: r.GroupID, Date: r.Date, Time: r.Time}
}

// Total is always derived from payment and savings, never stored.
func (r PaymentRecord) Total() decimal.Decimal {
	return r.Payment.Add(r.Savings)
}

// At parses the capture timestamp. Malformed stored strings yield the
// zero time.
func (r PaymentRecord) At() time.Time {
	t, err := time.Parse(DateLayout+" "+TimeLayout, r.Date+" "+r.Time)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SameContent reports whether two records carry the same payload, for
// telling duplicates from conflicts. The confirmed flag and provenance
// fields are not payload.
func (r PaymentRecord) SameContent(o PaymentRecord) bool {
	return r.Payment.Equal(o.Payment) &&
		r.Savings.Equal(o.Savings) &&
		r.GroupName == o.GroupName &&
		r.Branch == o.Branch &&
		r.PaymentNumber == o.PaymentNumber
}

// Ledger is the ordered, key-unique collection of payment records.
type Ledger struct {
	records []PaymentRecord
	index   map[Key]int
}

// New builds a ledger from stored records, keeping the first record seen
// for each key so a damaged store cannot break uniqueness.
func New(records []PaymentRecord) *Ledger {
	l := &Ledger{index: make(map[Key]int, len(records))}
	for _, r := range records {
		l.Append(r)
	}
	return l
}

func (l *Ledger) Len() int { return len(l.records) }

// Records returns the ledger in stored order. The slice is a copy.
func (l *Ledger) Records() []PaymentRecord {
	out := make([]PaymentRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Find returns the record for key.
func (l *Ledger) Find(k Key) (PaymentRecord, bool) {
	i, ok := l.index[k]
	if !ok {
		return PaymentRecord{}, false
	}
	return l.records[i], true
}

// Append adds a record when its key is free and reports whether it did.
func (l *Ledger) Append(r PaymentRecord) bool {
	if _, ok := l.index[r.Key()]; ok {
		return false
	}
	l.index[r.Key()] = len(l.records)
	l.records = append(l.records, r)
	return true
}

// Confirm flips the confirmed flag for key. found reports whether the key
// exists, changed whether the flag actually flipped.
func (l *Ledger) Confirm(k Key) (changed, found bool) {
	i, ok := l.index[k]
	if !ok {
		return false, false
	}
	if l.records[i].Confirmed {
		return false, true
	}
	l.records[i].Confirmed = true
	return true, true
}

// Confirmed projects the confirmed subset in stored order.
func (l *Ledger) Confirmed() []PaymentRecord {
	var out []PaymentRecord
	for _, r := range l.records {
		if r.Confirmed {
			out = append(out, r)
		}
	}
	return out
}
