// Package report renders settlement ledgers for people: aligned console
// tables with thousands separators.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/generic"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Ledger column labels, in display order.
var (
	ColumnsKorean  = []string{"회차", "결제일", "월요금", "납부월요금", "잔여월요금", "연체금액", "납부연체금액", "잔여연체금액", "최종납부일"}
	ColumnsEnglish = []string{"Seq", "Due", "Billed", "Paid", "Outstanding", "Overdue", "Overdue paid", "Overdue outstanding", "Last paid"}
)

// LastPaidLayout formats the last payment timestamp.
const LastPaidLayout = "2006-01-02 15:04:05"

// Row is one installment in display form.
type Row struct {
	Seq                  int
	DueDate              time.Time
	Billed               generic.Amount
	PaidPrincipal        generic.Amount
	OutstandingPrincipal generic.Amount
	AccruedOverdue       generic.Amount
	PaidOverdue          generic.Amount
	OutstandingOverdue   generic.Amount
	LastPaidAt           *time.Time
}

// Rows converts installments into display rows.
func Rows(installments []billing.Installment) []Row {
	rows := make([]Row, len(installments))
	for i := range installments {
		inst := &installments[i]
		rows[i] = Row{
			Seq:                  inst.Seq,
			DueDate:              inst.DueDate,
			Billed:               inst.Billed,
			PaidPrincipal:        inst.PaidPrincipal,
			OutstandingPrincipal: inst.OutstandingPrincipal(),
			AccruedOverdue:       inst.AccruedOverdue,
			PaidOverdue:          inst.PaidOverdue,
			OutstandingOverdue:   inst.OutstandingOverdue(),
			LastPaidAt:           inst.LastPaidAt,
		}
	}
	return rows
}

// Printer writes tables in one language.
type Printer struct {
	w       io.Writer
	p       *message.Printer
	columns []string
	korean  bool
}

// NewPrinter picks column labels from tag: Korean for language.Korean,
// English otherwise.
func NewPrinter(w io.Writer, tag language.Tag) *Printer {
	base, _ := tag.Base()
	korean := base.String() == "ko"
	columns := ColumnsEnglish
	if korean {
		columns = ColumnsKorean
	}
	return &Printer{w: w, p: message.NewPrinter(tag), columns: columns, korean: korean}
}

// Columns returns the ledger labels in the printer's language.
func (pr *Printer) Columns() []string { return pr.columns }

// Amount formats an amount with grouping, dropping the fraction when whole.
func (pr *Printer) Amount(a generic.Amount) string {
	if a.Value.IsInteger() {
		return pr.p.Sprintf("%d", a.Value.IntPart())
	}
	f, _ := a.Value.Round(2).Float64()
	return pr.p.Sprintf("%.2f", f)
}

// WriteLedger prints one line per installment.
func (pr *Printer) WriteLedger(installments []billing.Installment) error {
	tw := tabwriter.NewWriter(pr.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for i, col := range pr.columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprint(tw, "\t\n")

	for _, r := range Rows(installments) {
		lastPaid := "-"
		if r.LastPaidAt != nil {
			lastPaid = r.LastPaidAt.Format(LastPaidLayout)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Seq,
			generic.FormatDate(r.DueDate),
			pr.Amount(r.Billed),
			pr.Amount(r.PaidPrincipal),
			pr.Amount(r.OutstandingPrincipal),
			pr.Amount(r.AccruedOverdue),
			pr.Amount(r.PaidOverdue),
			pr.Amount(r.OutstandingOverdue),
			lastPaid,
		)
	}
	return tw.Flush()
}

// WriteSummary prints the totals block printed under a ledger.
func (pr *Printer) WriteSummary(s billing.Summary) error {
	labels := []string{"Installments", "Billed so far", "Settled", "Overdue", "Total billed", "Principal paid", "Principal outstanding", "Overdue paid", "Overdue outstanding", "Total outstanding"}
	if pr.korean {
		labels = []string{"회차 수", "청구 회차", "완납 회차", "연체 회차", "총 청구금액", "납부월요금 합계", "잔여월요금 합계", "납부연체금액 합계", "잔여연체금액 합계", "총 미납금액"}
	}
	values := []string{
		pr.p.Sprintf("%d", s.Installments),
		pr.p.Sprintf("%d", s.BilledCount),
		pr.p.Sprintf("%d", s.SettledCount),
		pr.p.Sprintf("%d", s.OverdueCount),
		pr.Amount(s.Billed),
		pr.Amount(s.PaidPrincipal),
		pr.Amount(s.OutstandingPrincipal),
		pr.Amount(s.PaidOverdue),
		pr.Amount(s.OutstandingOverdue),
		pr.Amount(s.TotalOutstanding()),
	}

	tw := tabwriter.NewWriter(pr.w, 0, 0, 2, ' ', 0)
	for i := range labels {
		fmt.Fprintf(tw, "%s\t%s\n", labels[i], values[i])
	}
	return tw.Flush()
}

// WriteTerms prints the contract header.
func (pr *Printer) WriteTerms(t billing.ContractTerms) error {
	conv := string(t.Convention)
	if pr.korean {
		conv = t.Convention.Label()
	}
	_, err := pr.p.Fprintf(pr.w, "%s %s | %d months | day %d | delivered %s | total %s %s\n",
		conv, pr.Amount(t.MonthlyFee), t.TermMonths, t.BillingDay,
		generic.FormatDate(t.DeliveryDate), pr.Amount(t.TotalPayment()), t.Currency())
	return err
}
