/*
Package sheet reads collection statements from and writes settlement ledgers
to Excel workbooks.

IMPORT:
  The first worksheet (or a named one) must have a header row containing a
  payment time column and an amount column. Accepted headers:
    payment time: 결제일, paid_at, paid at, date
    amount:       결제금액, amount
    reference:    참조, 비고, reference (optional)
  Payment times may be Excel date serials or text. Rows whose amount is not
  a number are skipped and reported, never guessed at.

EXPORT:
  One row per installment with the ledger columns from the report package.
*/
package sheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/lease-settlement/generic"
	"github.com/xuri/excelize/v2"
)

var (
	paidAtHeaders    = []string{"결제일", "paid_at", "paid at", "date"}
	amountHeaders    = []string{"결제금액", "amount"}
	referenceHeaders = []string{"참조", "비고", "reference"}
)

// textLayouts are tried in order for payment times stored as text.
var textLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	generic.DateLayout,
	"2006/01/02",
	"2006.01.02",
}

// importNamespace scopes idempotency keys derived from statement rows.
var importNamespace = uuid.MustParse("5b0f8a8e-4f0e-4b8e-9a53-6c1f3d2e7a10")

// SkippedRow is a data row that did not become a collection.
type SkippedRow struct {
	Row    int // 1-based worksheet row
	Reason string
}

// ImportResult is what ReadCollections found.
type ImportResult struct {
	Sheet       string
	Collections []generic.Collection
	Skipped     []SkippedRow
}

// ImportOptions control ReadCollections.
type ImportOptions struct {
	// Sheet to read; the first sheet when empty.
	Sheet string
	// Currency of the amounts.
	Currency generic.Currency
	// Location is the billing time zone. Text times with an offset are
	// moved to its wall clock; UTC when nil.
	Location *time.Location
}

// ReadCollectionsFile opens path and reads collections for contractID.
func ReadCollectionsFile(path string, contractID generic.ContractID, opts ImportOptions) (*ImportResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()
	return readCollections(f, contractID, opts)
}

// ReadCollections reads a workbook from r.
func ReadCollections(r io.Reader, contractID generic.ContractID, opts ImportOptions) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readCollections(f, contractID, opts)
}

func readCollections(f *excelize.File, contractID generic.ContractID, opts ImportOptions) (*ImportResult, error) {
	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	cur := opts.Currency
	if cur == "" {
		cur = generic.DefaultCurrency
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", generic.ErrInvalidCollection, sheet)
	}

	header := rows[0]
	paidCol := findColumn(header, paidAtHeaders)
	amountCol := findColumn(header, amountHeaders)
	refCol := findColumn(header, referenceHeaders)

	var missing []string
	if paidCol < 0 {
		missing = append(missing, paidAtHeaders[0])
	}
	if amountCol < 0 {
		missing = append(missing, amountHeaders[0])
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns: %s", generic.ErrInvalidCollection, strings.Join(missing, ", "))
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	result := &ImportResult{Sheet: sheet}
	seen := make(map[string]int)

	for i, row := range rows[1:] {
		rowNum := i + 2
		paidRaw := cell(row, paidCol)
		amountRaw := cell(row, amountCol)
		if paidRaw == "" && amountRaw == "" {
			continue
		}

		amount, err := parseAmount(amountRaw)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: fmt.Sprintf("amount %q is not a number", amountRaw)})
			continue
		}
		paidAt, err := parsePaidAt(paidRaw, date1904, opts.Location)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: err.Error()})
			continue
		}
		if amount.IsNegative() {
			result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: "negative amount"})
			continue
		}

		fingerprint := fmt.Sprintf("%s|%s|%s", contractID, paidAt.Format(time.RFC3339Nano), amount.String())
		seen[fingerprint]++
		key := uuid.NewSHA1(importNamespace, []byte(fmt.Sprintf("%s|%d", fingerprint, seen[fingerprint])))

		reference := cell(row, refCol)
		if reference == "" {
			reference = fmt.Sprintf("%s!%d", sheet, rowNum)
		}

		result.Collections = append(result.Collections, generic.Collection{
			ContractID:     contractID,
			PaidAt:         paidAt,
			Amount:         generic.NewAmountFromDecimal(amount, cur),
			Reference:      reference,
			IdempotencyKey: "xlsx-" + key.String(),
		})
	}
	return result, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, name := range names {
			if h == name {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer(",", "", "₩", "", "원", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

// parsePaidAt reads an Excel serial or a text timestamp as a wall-clock
// reading stamped UTC.
func parsePaidAt(s string, date1904 bool, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing payment time")
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return time.Time{}, fmt.Errorf("payment time %q: %w", s, err)
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC).Round(time.Second), nil
	}
	for _, layout := range textLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		if layout == time.RFC3339 {
			return generic.WallClock(t, loc), nil
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("payment time %q is not a date", s)
}
