package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/storage"
)

// Header is the first line of every export.
var Header = []string{"Issuer", "Year", "Report Type", "PDF URL", "PDF Name"}

type filingKey struct {
	issuer, year, reportType string
}

// Ledger accumulates the documents indexed during one run.
type Ledger struct {
	runID  string
	repo   storage.LedgerRepository
	logger *slog.Logger

	mu   sync.Mutex
	rows []*core.LedgerRow
	seen map[filingKey]int
}

// Option configures a Ledger.
type Option func(*Ledger) error

// WithLogger sets the logger for the ledger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) error {
		l.logger = logger
		return nil
	}
}

// WithRepository persists every appended row under the run ID.
func WithRepository(repo storage.LedgerRepository) Option {
	return func(l *Ledger) error {
		l.repo = repo
		return nil
	}
}

// New creates an empty ledger for a run.
func New(runID string, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		runID:  runID,
		logger: slog.Default(),
		seen:   make(map[filingKey]int),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "ledger", "run", runID)
	return l, nil
}

// RunID returns the run the ledger belongs to.
func (l *Ledger) RunID() string {
	return l.runID
}

// Append records a successfully indexed document.
// A repeated (issuer, year, report type) combination is kept and logged.
func (l *Ledger) Append(ctx context.Context, row core.LedgerRow) error {
	if err := core.ValidateLedgerRow(&row); err != nil {
		return err
	}
	if l.repo != nil {
		if err := l.repo.AppendLedgerRows(ctx, l.runID, &row); err != nil {
			return fmt.Errorf("persisting ledger row: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key := filingKey{row.Issuer, row.Year, row.ReportType}
	if n := l.seen[key]; n > 0 {
		l.logger.Warn("duplicate filing in run",
			"issuer", row.Issuer, "year", row.Year, "report_type", row.ReportType,
			"occurrence", n+1, "document", row.DocumentName)
	}
	l.seen[key]++
	l.rows = append(l.rows, &row)
	return nil
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

// Rows returns a copy of the rows in append order.
func (l *Ledger) Rows() []*core.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*core.LedgerRow(nil), l.rows...)
}

// Export writes the ledger as CSV.
func (l *Ledger) Export(w io.Writer) error {
	return WriteCSV(w, l.Rows())
}

// ExportFile writes the ledger as CSV to path, replacing any existing file.
func (l *Ledger) ExportFile(path string) error {
	if err := WriteCSVFile(path, l.Rows()); err != nil {
		return err
	}
	l.logger.Info("ledger exported", "path", path, "rows", l.Len())
	return nil
}

// WriteCSV writes the header followed by one line per row.
func WriteCSV(w io.Writer, rows []*core.LedgerRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{row.Issuer, row.Year, row.ReportType, row.DocumentURL, row.DocumentName}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes rows to path through a temporary file in the same directory.
func WriteCSVFile(path string, rows []*core.LedgerRow) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
