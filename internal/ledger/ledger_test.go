package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func record(id, date, clock, payment, savings string) PaymentRecord {
	return PaymentRecord{
		GroupID:   id,
		GroupName: "BIENVENIDOS",
		Branch:    "IXTAPALUCA",
		Date:      date,
		Time:      clock,
		Payment:   decimal.RequireFromString(payment),
		Savings:   decimal.RequireFromString(savings),
	}
}

func TestTotalDerived(t *testing.T) {
	t.Parallel()
	r := record("000094", "24/10/25", "10:51:52", "12921", "1293")
	require.True(t, r.Total().Equal(decimal.RequireFromString("14214")))
}

func TestAtParsesCaptureTimestamp(t *testing.T) {
	t.Parallel()
	r := record("000094", "24/10/25", "10:51:52", "1", "0")
	want := time.Date(2025, time.October, 24, 10, 51, 52, 0, time.UTC)
	require.Equal(t, want, r.At())

	r.Date = "not-a-date"
	require.True(t, r.At().IsZero())
}

func TestIDStableAcrossLoads(t *testing.T) {
	t.Parallel()
	a := record("000094", "24/10/25", "10:51:52", "12921", "1293")
	b := record("000094", "24/10/25", "10:51:52", "999", "0")
	c := record("000094", "24/10/25", "10:51:53", "12921", "1293")
	require.Equal(t, a.ID(), b.ID())
	require.NotEqual(t, a.ID(), c.ID())
}

func TestAppendRejectsDuplicateKey(t *testing.T) {
	t.Parallel()
	l := New(nil)
	require.True(t, l.Append(record("000094", "24/10/25", "10:51:52", "12921", "1293")))
	require.False(t, l.Append(record("000094", "24/10/25", "10:51:52", "500", "0")))
	require.True(t, l.Append(record("000095", "24/10/25", "10:51:52", "500", "0")))
	require.Equal(t, 2, l.Len())
}

func TestNewDropsLaterDuplicates(t *testing.T) {
	t.Parallel()
	first := record("000094", "24/10/25", "10:51:52", "12921", "1293")
	l := New([]PaymentRecord{
		first,
		record("000094", "24/10/25", "10:51:52", "1", "1"),
		record("000096", "25/10/25", "09:00:00", "700", "0"),
	})
	require.Equal(t, 2, l.Len())
	got, ok := l.Find(first.Key())
	require.True(t, ok)
	require.True(t, got.Payment.Equal(first.Payment))
}

func TestConfirm(t *testing.T) {
	t.Parallel()
	r := record("000094", "24/10/25", "10:51:52", "12921", "1293")
	l := New([]PaymentRecord{r})

	changed, found := l.Confirm(r.Key())
	require.True(t, found)
	require.True(t, changed)

	changed, found = l.Confirm(r.Key())
	require.True(t, found)
	require.False(t, changed)

	_, found = l.Confirm(Key{GroupID: "000001", Date: r.Date, Time: r.Time})
	require.False(t, found)

	confirmed := l.Confirmed()
	require.Len(t, confirmed, 1)
	require.True(t, confirmed[0].Confirmed)
}

func TestRecordsIsACopy(t *testing.T) {
	t.Parallel()
	l := New([]PaymentRecord{record("000094", "24/10/25", "10:51:52", "1", "0")})
	got := l.Records()
	got[0].GroupID = "mutated"
	fresh := l.Records()
	require.Equal(t, "000094", fresh[0].GroupID)
}
