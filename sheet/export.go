package sheet

import (
	"fmt"
	"io"

	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/generic"
	"github.com/warp/lease-settlement/report"
	"github.com/xuri/excelize/v2"
)

// Default workbook names used by the settle CLI.
const (
	ScheduleFile        = "상환스케쥴표.xlsx"
	UpdatedScheduleFile = "상환스케쥴표_업데이트.xlsx"
	LedgerSheet         = "Ledger"
	CollectionsSheet    = "Collections"
)

// ExportOptions control ledger export.
type ExportOptions struct {
	// Columns are the header labels; report.ColumnsKorean when nil.
	Columns []string
	// Collections, when set, are written to a second sheet.
	Collections []generic.Collection
}

// NewLedgerWorkbook builds a workbook holding the ledger. Callers own the
// returned file and must Close it.
func NewLedgerWorkbook(installments []billing.Installment, opts ExportOptions) (*excelize.File, error) {
	columns := opts.Columns
	if columns == nil {
		columns = report.ColumnsKorean
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), LedgerSheet); err != nil {
		f.Close()
		return nil, err
	}

	if err := writeLedgerSheet(f, installments, columns); err != nil {
		f.Close()
		return nil, err
	}
	if len(opts.Collections) > 0 {
		if err := writeCollectionsSheet(f, opts.Collections); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// WriteLedger writes the workbook to w.
func WriteLedger(w io.Writer, installments []billing.Installment, opts ExportOptions) error {
	f, err := NewLedgerWorkbook(installments, opts)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveLedger writes the workbook to path.
func SaveLedger(path string, installments []billing.Installment, opts ExportOptions) error {
	f, err := NewLedgerWorkbook(installments, opts)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeLedgerSheet(f *excelize.File, installments []billing.Installment, columns []string) error {
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(LedgerSheet, "A1", &header); err != nil {
		return err
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return err
	}
	stampStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return err
	}

	for i, r := range report.Rows(installments) {
		row := i + 2
		values := []any{
			r.Seq,
			r.DueDate,
			amountValue(r.Billed),
			amountValue(r.PaidPrincipal),
			amountValue(r.OutstandingPrincipal),
			amountValue(r.AccruedOverdue),
			amountValue(r.PaidOverdue),
			amountValue(r.OutstandingOverdue),
			nil,
		}
		if r.LastPaidAt != nil {
			values[8] = *r.LastPaidAt
		}

		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(LedgerSheet, start, &values); err != nil {
			return err
		}
		if err := setStyle(f, LedgerSheet, 2, 2, row, dateStyle); err != nil {
			return err
		}
		if err := setStyle(f, LedgerSheet, 3, 8, row, amountStyle); err != nil {
			return err
		}
		if err := setStyle(f, LedgerSheet, 9, 9, row, stampStyle); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(LedgerSheet, "B", "B", 12); err != nil {
		return err
	}
	if err := f.SetColWidth(LedgerSheet, "C", "H", 14); err != nil {
		return err
	}
	return f.SetColWidth(LedgerSheet, "I", "I", 20)
}

func writeCollectionsSheet(f *excelize.File, collections []generic.Collection) error {
	if _, err := f.NewSheet(CollectionsSheet); err != nil {
		return err
	}
	header := []any{"결제일", "결제금액", "참조"}
	if err := f.SetSheetRow(CollectionsSheet, "A1", &header); err != nil {
		return err
	}
	stampStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return err
	}
	for i, c := range collections {
		row := i + 2
		values := []any{c.PaidAt, amountValue(c.Amount), c.Reference}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(CollectionsSheet, start, &values); err != nil {
			return err
		}
		if err := setStyle(f, CollectionsSheet, 1, 1, row, stampStyle); err != nil {
			return err
		}
	}
	return f.SetColWidth(CollectionsSheet, "A", "A", 20)
}

func setStyle(f *excelize.File, sheet string, fromCol, toCol, row, style int) error {
	from, err := excelize.CoordinatesToCellName(fromCol, row)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(toCol, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, from, to, style)
}

// amountValue keeps whole amounts as integers so the cell holds no float noise.
func amountValue(a generic.Amount) any {
	if a.Value.IsInteger() {
		return a.Value.IntPart()
	}
	f, _ := a.Value.Float64()
	return f
}
