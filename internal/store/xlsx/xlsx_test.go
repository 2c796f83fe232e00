package xlsx

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ofarias/chatpagos/internal/ledger"
	"github.com/ofarias/chatpagos/internal/shift"
	"github.com/ofarias/chatpagos/internal/store"
)

func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Pagos.xlsx")
	return Open(path), path
}

func testRecord(id, date, clock, payment, savings string) ledger.PaymentRecord {
	return ledger.PaymentRecord{
		GroupID:    id,
		GroupName:  "BIENVENIDOS",
		Branch:     "IXTAPALUCA",
		Date:       date,
		Time:       clock,
		Payment:    decimal.RequireFromString(payment),
		Savings:    decimal.RequireFromString(savings),
		Shift:      shift.Morning,
		SourceFile: "chat.txt",
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := setupStore(t)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	marker, err := s.LastProcessed(ctx)
	require.NoError(t, err)
	require.True(t, marker.IsZero())
}

func TestReplaceAndLoadRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, path := setupStore(t)

	records := []ledger.PaymentRecord{
		testRecord("000094", "24/10/25", "10:51:52", "12921", "1293"),
		testRecord("000121", "24/10/25", "12:15:00", "5000.50", "0"),
	}
	records[1].Confirmed = true
	records[1].PaymentNumber = "4"
	records[1].Shift = shift.Evening
	require.NoError(t, s.Replace(ctx, records))

	// Only the renamed workbook remains, no temp leftovers.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, filepath.Base(path), entries[0].Name())

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "000094", got[0].GroupID)
	require.Equal(t, "BIENVENIDOS", got[0].GroupName)
	require.Equal(t, "IXTAPALUCA", got[0].Branch)
	require.Equal(t, "24/10/25", got[0].Date)
	require.Equal(t, "10:51:52", got[0].Time)
	require.True(t, got[0].Payment.Equal(decimal.RequireFromString("12921")))
	require.True(t, got[0].Savings.Equal(decimal.RequireFromString("1293")))
	require.Equal(t, shift.Morning, got[0].Shift)
	require.False(t, got[0].Confirmed)
	require.Equal(t, "chat.txt", got[0].SourceFile)

	require.True(t, got[1].Payment.Equal(decimal.RequireFromString("5000.5")))
	require.True(t, got[1].Savings.IsZero())
	require.Equal(t, "4", got[1].PaymentNumber)
	require.True(t, got[1].Confirmed)
}

func TestWorkbookSheets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, path := setupStore(t)

	records := []ledger.PaymentRecord{
		testRecord("000094", "24/10/25", "10:51:52", "12921", "1293"),
		testRecord("000121", "24/10/25", "12:15:00", "5000", "500"),
	}
	records[1].Confirmed = true
	require.NoError(t, s.Replace(ctx, records))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetPayments)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "ID", rows[0][0])
	require.Equal(t, "000094", rows[1][0])
	require.Equal(t, "14214", rows[1][6])
	require.Equal(t, "NO", rows[1][10])

	confirmed, err := f.GetRows(sheetConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 2)
	require.Equal(t, "000121", confirmed[1][0])
	require.Equal(t, "SI", confirmed[1][10])

	visible, err := f.GetSheetVisible(sheetMeta)
	require.NoError(t, err)
	require.False(t, visible)
}

func TestMarkerSurvivesReplace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := setupStore(t)

	at := time.Date(2025, time.October, 24, 10, 51, 52, 0, time.UTC)
	require.NoError(t, s.SetLastProcessed(ctx, at))

	require.NoError(t, s.Replace(ctx, []ledger.PaymentRecord{
		testRecord("000094", "24/10/25", "10:51:52", "100", "0"),
	}))

	marker, err := s.LastProcessed(ctx)
	require.NoError(t, err)
	require.Equal(t, at, marker)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestReplaceRejectsDuplicateKeyBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := setupStore(t)

	require.NoError(t, s.Replace(ctx, []ledger.PaymentRecord{
		testRecord("000094", "24/10/25", "10:51:52", "100", "0"),
	}))

	err := s.Replace(ctx, []ledger.PaymentRecord{
		testRecord("000094", "24/10/25", "10:51:52", "100", "0"),
		testRecord("000094", "24/10/25", "10:51:52", "200", "0"),
	})
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Payment.Equal(decimal.RequireFromString("100")))
}

func TestClearRemovesWorkbook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := setupStore(t)

	require.NoError(t, s.Replace(ctx, []ledger.PaymentRecord{
		testRecord("000094", "24/10/25", "10:51:52", "100", "0"),
	}))
	require.NoError(t, s.SetLastProcessed(ctx, time.Now()))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	marker, err := s.LastProcessed(ctx)
	require.NoError(t, err)
	require.True(t, marker.IsZero())
}

func TestOrderPreserved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := setupStore(t)

	records := []ledger.PaymentRecord{
		testRecord("000300", "24/10/25", "10:00:00", "300", "0"),
		testRecord("000100", "24/10/25", "09:00:00", "100", "0"),
		testRecord("000200", "25/10/25", "08:00:00", "200", "0"),
	}
	require.NoError(t, s.Replace(ctx, records))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "000300", got[0].GroupID)
	require.Equal(t, "000100", got[1].GroupID)
	require.Equal(t, "000200", got[2].GroupID)
}
