package sheet_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/generic"
	"github.com/warp/lease-settlement/report"
	"github.com/warp/lease-settlement/sheet"
	"github.com/xuri/excelize/v2"
)

// statement builds an in-memory workbook with the given rows under header.
func statement(t *testing.T, header []any, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	s := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(s, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(s, cell, &r))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

// =============================================================================
// IMPORT
// =============================================================================

func TestReadCollections_KoreanHeaders(t *testing.T) {
	// GIVEN: A bank statement with 결제일 / 결제금액 columns
	//   row 2: Excel date-time, row 3: text date-time with grouping commas,
	//   row 4: non-numeric amount
	// THEN: Two collections, one skipped row

	buf := statement(t, []any{"결제일", "결제금액"},
		[]any{time.Date(2023, 10, 30, 13, 0, 0, 0, time.UTC), 300000},
		[]any{"2023-11-05 00:00", "100,000"},
		[]any{"2023-11-06 09:00", "미확인"},
	)

	result, err := sheet.ReadCollections(buf, "ct-1", sheet.ImportOptions{})
	require.NoError(t, err)
	require.Len(t, result.Collections, 2)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, 4, result.Skipped[0].Row)

	first := result.Collections[0]
	assert.Equal(t, generic.ContractID("ct-1"), first.ContractID)
	assert.Equal(t, time.Date(2023, 10, 30, 13, 0, 0, 0, time.UTC), first.PaidAt)
	assert.True(t, first.Amount.Equal(generic.NewAmount(300000, generic.KRW)))
	assert.Equal(t, generic.KRW, first.Amount.Currency)
	assert.NotEmpty(t, first.IdempotencyKey)

	second := result.Collections[1]
	assert.Equal(t, time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC), second.PaidAt)
	assert.True(t, second.Amount.Equal(generic.NewAmount(100000, generic.KRW)))
}

func TestReadCollections_EnglishHeadersAndReference(t *testing.T) {
	buf := statement(t, []any{"Reference", "Amount", "Paid_At"},
		[]any{"TX-1", "500000", "2023-10-20T09:00:00"},
	)

	result, err := sheet.ReadCollections(buf, "ct-1", sheet.ImportOptions{Currency: generic.Currency("USD")})
	require.NoError(t, err)
	require.Len(t, result.Collections, 1)
	assert.Equal(t, "TX-1", result.Collections[0].Reference)
	assert.Equal(t, generic.Currency("USD"), result.Collections[0].Amount.Currency)
}

func TestReadCollections_StableIdempotencyKeys(t *testing.T) {
	// Re-importing the same statement yields the same keys; two identical
	// payments in one statement still get distinct keys.
	rows := [][]any{
		{"2023-10-20 09:00", 250000},
		{"2023-10-20 09:00", 250000},
	}
	a, err := sheet.ReadCollections(statement(t, []any{"결제일", "결제금액"}, rows...), "ct-1", sheet.ImportOptions{})
	require.NoError(t, err)
	b, err := sheet.ReadCollections(statement(t, []any{"결제일", "결제금액"}, rows...), "ct-1", sheet.ImportOptions{})
	require.NoError(t, err)

	require.Len(t, a.Collections, 2)
	assert.NotEqual(t, a.Collections[0].IdempotencyKey, a.Collections[1].IdempotencyKey)
	assert.Equal(t, a.Collections[0].IdempotencyKey, b.Collections[0].IdempotencyKey)
	assert.Equal(t, a.Collections[1].IdempotencyKey, b.Collections[1].IdempotencyKey)

	other, err := sheet.ReadCollections(statement(t, []any{"결제일", "결제금액"}, rows...), "ct-2", sheet.ImportOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, a.Collections[0].IdempotencyKey, other.Collections[0].IdempotencyKey)
}

func TestReadCollections_MissingColumns(t *testing.T) {
	_, err := sheet.ReadCollections(statement(t, []any{"결제일", "메모"}), "ct-1", sheet.ImportOptions{})
	assert.ErrorIs(t, err, generic.ErrInvalidCollection)
	assert.Contains(t, err.Error(), "결제금액")
}

func TestReadCollections_BadDateSkipped(t *testing.T) {
	buf := statement(t, []any{"결제일", "결제금액"},
		[]any{"next tuesday", 1000},
		[]any{"", ""},
		[]any{"2023-10-20", -5},
	)
	result, err := sheet.ReadCollections(buf, "ct-1", sheet.ImportOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Collections)
	require.Len(t, result.Skipped, 2, "blank rows are ignored silently")
	assert.Equal(t, 2, result.Skipped[0].Row)
	assert.Equal(t, 4, result.Skipped[1].Row)
}

func TestReadCollections_OffsetTimesReadOnBillingClock(t *testing.T) {
	// GIVEN: One time written in UTC, one without a zone
	// WHEN: Importing with a KST billing clock
	// THEN: The UTC time moves to the KST wall clock, the zoneless one stays

	buf := statement(t, []any{"결제일", "결제금액"},
		[]any{"2023-10-30T04:00:00Z", 1000},
		[]any{"2023-10-30 13:00:00", 2000},
	)
	kst := time.FixedZone("KST", 9*60*60)
	result, err := sheet.ReadCollections(buf, "ct-1", sheet.ImportOptions{Location: kst})
	require.NoError(t, err)
	require.Len(t, result.Collections, 2)

	want := time.Date(2023, 10, 30, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, want, result.Collections[0].PaidAt)
	assert.Equal(t, want, result.Collections[1].PaidAt)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestWriteLedger_RoundTripThroughExcelize(t *testing.T) {
	fee := generic.NewAmount(500000, generic.KRW)
	ledger := billing.NewInstallments([]billing.ScheduleEntry{
		{DueDate: generic.Date(2023, 10, 25), Amount: fee},
		{DueDate: generic.Date(2023, 11, 25), Amount: fee},
	})
	paidAt := time.Date(2023, 10, 30, 13, 0, 0, 0, time.UTC)
	_, err := billing.NewAllocator(fee).Allocate(ledger, 1,
		[]generic.CollectionEvent{{At: paidAt, Amount: generic.NewAmount(300000, generic.KRW)}}, paidAt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, sheet.WriteLedger(&buf, ledger, sheet.ExportOptions{
		Collections: []generic.Collection{{PaidAt: paidAt, Amount: generic.NewAmount(300000, generic.KRW), Reference: "TX-1"}},
	}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheet.LedgerSheet, sheet.CollectionsSheet}, f.GetSheetList())

	rows, err := f.GetRows(sheet.LedgerSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, report.ColumnsKorean, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "500000", rows[1][2])
	assert.Equal(t, "299453", rows[1][3])
	assert.Equal(t, "200547", rows[1][4])
	assert.Equal(t, "547", rows[1][6])

	due, err := f.GetCellValue(sheet.LedgerSheet, "B2")
	require.NoError(t, err)
	assert.NotEmpty(t, due)

	// The exported collections sheet can be imported again.
	var again bytes.Buffer
	require.NoError(t, f.Write(&again))
	imported, err := sheet.ReadCollections(&again, "ct-1", sheet.ImportOptions{Sheet: sheet.CollectionsSheet})
	require.NoError(t, err)
	require.Len(t, imported.Collections, 1)
	assert.Equal(t, paidAt, imported.Collections[0].PaidAt)
	assert.Equal(t, "TX-1", imported.Collections[0].Reference)
}

func TestWriteLedger_EnglishColumns(t *testing.T) {
	ledger := billing.NewInstallments([]billing.ScheduleEntry{
		{DueDate: generic.Date(2023, 10, 25), Amount: generic.NewAmount(1, generic.KRW)},
	})
	var buf bytes.Buffer
	require.NoError(t, sheet.WriteLedger(&buf, ledger, sheet.ExportOptions{Columns: report.ColumnsEnglish}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	header, err := f.GetRows(sheet.LedgerSheet)
	require.NoError(t, err)
	assert.Equal(t, report.ColumnsEnglish, header[0])
}
