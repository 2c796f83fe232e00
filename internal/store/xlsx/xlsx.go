package xlsx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ofarias/chatpagos/internal/ledger"
	"github.com/ofarias/chatpagos/internal/store"
)

const (
	sheetPayments  = "Pagos"
	sheetConfirmed = "Pagos Confirmados"
	sheetMeta      = "Meta"
	metaHeader     = "ultimo_timestamp"
	markerLayout   = "2006-01-02 15:04:05"
)

var headers = []string{
	"ID", "Grupo", "Fecha", "Hora", "Pago", "Ahorro", "Total",
	"Número de Pago", "Sucursal", "Corte", "Confirmado", "Archivo",
}

// Store persists the ledger as a spreadsheet workbook: a Pagos sheet with
// every record, a derived Pagos Confirmados sheet rebuilt on every write,
// and a hidden Meta sheet holding the last-processed marker.
type Store struct {
	mu   sync.Mutex
	path string
}

var _ store.Store = (*Store)(nil)

// Open points the store at a workbook path. The file is created on the
// first write; a missing file loads as an empty ledger.
func Open(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Close() error { return nil }

func (s *Store) Load(ctx context.Context) ([]ledger.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() ([]ledger.PaymentRecord, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetPayments)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", sheetPayments, err)
	}
	var out []ledger.PaymentRecord
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if cell(row, 0) == "" {
			continue
		}
		r, err := rowRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func rowRecord(row []string) (ledger.PaymentRecord, error) {
	payment, err := decimal.NewFromString(cell(row, 4))
	if err != nil {
		return ledger.PaymentRecord{}, fmt.Errorf("payment amount %q: %w", cell(row, 4), err)
	}
	savings := decimal.Zero
	if v := cell(row, 5); v != "" {
		if savings, err = decimal.NewFromString(v); err != nil {
			return ledger.PaymentRecord{}, fmt.Errorf("savings amount %q: %w", v, err)
		}
	}
	return ledger.PaymentRecord{
		GroupID:       cell(row, 0),
		GroupName:     cell(row, 1),
		Date:          cell(row, 2),
		Time:          cell(row, 3),
		Payment:       payment,
		Savings:       savings,
		PaymentNumber: cell(row, 7),
		Branch:        cell(row, 8),
		Shift:         cell(row, 9),
		Confirmed:     cell(row, 10) == "SI",
		SourceFile:    cell(row, 11),
	}, nil
}

// cell tolerates the trailing-empty-cell trimming GetRows performs.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func (s *Store) Replace(ctx context.Context, records []ledger.PaymentRecord) error {
	if err := store.CheckUnique(records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	marker, err := s.markerLocked()
	if err != nil {
		return err
	}
	return s.writeLocked(records, marker)
}

func (s *Store) LastProcessed(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markerLocked()
}

func (s *Store) markerLocked() (time.Time, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetMeta)
	if err != nil {
		var sheetErr excelize.ErrSheetNotExist
		if errors.As(err, &sheetErr) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("read %s sheet: %w", sheetMeta, err)
	}
	if len(rows) < 2 || len(rows[1]) == 0 || rows[1][0] == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(markerLayout, rows[1][0])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse marker %q: %w", rows[1][0], err)
	}
	return t, nil
}

func (s *Store) SetLastProcessed(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.loadLocked()
	if err != nil {
		return err
	}
	return s.writeLocked(records, t)
}

// Clear removes the workbook entirely, dropping records and marker.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove workbook: %w", err)
	}
	return nil
}

// writeLocked rebuilds the workbook to a temp file and renames it over
// the target, so a failed write never truncates the previous ledger. The
// temp name carries no workbook extension, which SaveAs refuses, so the
// bytes go through Write.
func (s *Store) writeLocked(records []ledger.PaymentRecord, marker time.Time) error {
	f, err := buildWorkbook(records, marker)
	if err != nil {
		return err
	}
	defer f.Close()

	tmp := filepath.Join(filepath.Dir(s.path), fmt.Sprintf(".%s.tmp-%s", filepath.Base(s.path), randHex(6)))
	w, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	if err := f.Write(w); err != nil {
		_ = w.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := w.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}

func buildWorkbook(records []ledger.PaymentRecord, marker time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetPayments); err != nil {
		return nil, fmt.Errorf("name %s sheet: %w", sheetPayments, err)
	}
	if err := writeSheet(f, sheetPayments, records); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(sheetConfirmed); err != nil {
		return nil, fmt.Errorf("create %s sheet: %w", sheetConfirmed, err)
	}
	var confirmed []ledger.PaymentRecord
	for _, r := range records {
		if r.Confirmed {
			confirmed = append(confirmed, r)
		}
	}
	if err := writeSheet(f, sheetConfirmed, confirmed); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(sheetMeta); err != nil {
		return nil, fmt.Errorf("create %s sheet: %w", sheetMeta, err)
	}
	if err := f.SetCellValue(sheetMeta, "A1", metaHeader); err != nil {
		return nil, fmt.Errorf("write marker header: %w", err)
	}
	if !marker.IsZero() {
		if err := f.SetCellValue(sheetMeta, "A2", marker.UTC().Format(markerLayout)); err != nil {
			return nil, fmt.Errorf("write marker: %w", err)
		}
	}
	if err := f.SetSheetVisible(sheetMeta, false); err != nil {
		return nil, fmt.Errorf("hide %s sheet: %w", sheetMeta, err)
	}

	idx, err := f.GetSheetIndex(sheetPayments)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, records []ledger.PaymentRecord) error {
	for i, h := range headers {
		cellName, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cellName, h); err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
	}
	for n, r := range records {
		values := []interface{}{
			r.GroupID,
			r.GroupName,
			r.Date,
			r.Time,
			r.Payment.InexactFloat64(),
			r.Savings.InexactFloat64(),
			r.Total().InexactFloat64(),
			r.PaymentNumber,
			r.Branch,
			r.Shift,
			confirmedCell(r.Confirmed),
			r.SourceFile,
		}
		for i, v := range values {
			cellName, err := excelize.CoordinatesToCellName(i+1, n+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cellName, v); err != nil {
				return fmt.Errorf("write %s row %d: %w", sheet, n+2, err)
			}
		}
	}
	if err := f.SetColWidth(sheet, "A", "L", 12); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 24); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "I", "I", 18)
}

func confirmedCell(confirmed bool) string {
	if confirmed {
		return "SI"
	}
	return "NO"
}

func randHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
