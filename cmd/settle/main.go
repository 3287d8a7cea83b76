/*
main.go - Command-line settlement of a single lease contract

PURPOSE:
  Generates a contract's installment schedule, optionally reads collections
  from a bank statement workbook, settles them as of an instant and prints
  the ledger. Nothing is persisted; the server (cmd/server) is the stateful
  counterpart.

FLOW:
  1. Build the contract from -contract (JSON file) or the term flags
  2. Generate the schedule
  3. Import collections from -collections (xlsx), reporting skipped rows
  4. Settle the first -billed installments as of -as-of
     (-billed 0: every installment due by then; nothing due: schedule only)
  5. Print terms, ledger and summary; write -out when given

COMMAND-LINE FLAGS:
  -config       YAML configuration file (logging, billing.currency, billing.timezone)
  -contract     Contract JSON file; replaces the term flags
  -fee          Monthly fee
  -months       Term in months
  -day          Billing day of month (1-31)
  -delivery     Delivery date, YYYY-MM-DD
  -convention   prepay (선납) or postpay (후납)
  -advance      Advance payment
  -collections  Bank statement workbook (결제일 / 결제금액 columns)
  -sheet        Statement sheet name (default: first sheet)
  -billed       Number of billed installments (0: due as of -as-of)
  -as-of        Settlement instant (default: now on the billing clock)
  -timezone     Billing time zone; overrides billing.timezone
  -out          Ledger workbook to write
  -lang         Output language tag (ko, en)
  -log-level    debug, info, warn, error

EXAMPLES:
  ./settle -fee 500000 -months 36 -day 25 -delivery 2023-09-15 -convention postpay
  ./settle -contract lease.json -collections statement.xlsx -as-of "2023-11-30 00:00:00" \
      -out 상환스케쥴표_업데이트.xlsx
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/config"
	"github.com/warp/lease-settlement/factory"
	"github.com/warp/lease-settlement/generic"
	"github.com/warp/lease-settlement/report"
	"github.com/warp/lease-settlement/sheet"
)

type options struct {
	contractFile string
	contract     factory.ContractJSON
	collections  string
	sheet        string
	billed       int
	asOf         string
	out          string
	lang         string
	currency     generic.Currency
	loc          *time.Location
}

func main() {
	var (
		opts       options
		fee        string
		advance    string
		configPath string
		logLevel   string
		timezone   string
	)

	flag.StringVar(&configPath, "config", "", "YAML configuration file")
	flag.StringVar(&opts.contractFile, "contract", "", "Contract JSON file (replaces the term flags)")
	flag.StringVar(&fee, "fee", "", "Monthly fee")
	flag.IntVar(&opts.contract.TermMonths, "months", 0, "Term in months")
	flag.IntVar(&opts.contract.BillingDay, "day", 0, "Billing day of month (1-31)")
	flag.StringVar(&opts.contract.DeliveryDate, "delivery", "", "Delivery date, YYYY-MM-DD")
	flag.StringVar(&opts.contract.Convention, "convention", "prepay", "prepay (선납) or postpay (후납)")
	flag.StringVar(&advance, "advance", "", "Advance payment")
	flag.StringVar(&opts.collections, "collections", "", "Bank statement workbook (.xlsx)")
	flag.StringVar(&opts.sheet, "sheet", "", "Statement sheet name (default: first sheet)")
	flag.IntVar(&opts.billed, "billed", 0, "Billed installments (0: every installment due as of -as-of)")
	flag.StringVar(&opts.asOf, "as-of", "", "Settlement instant (default: now on the billing clock)")
	flag.StringVar(&timezone, "timezone", "", "Billing time zone, e.g. Asia/Seoul")
	flag.StringVar(&opts.out, "out", "", "Ledger workbook to write, e.g. "+sheet.UpdatedScheduleFile)
	flag.StringVar(&opts.lang, "lang", "ko", "Output language tag")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	opts.contract.MonthlyFee = factory.DecimalString(fee)
	opts.contract.AdvancePayment = factory.DecimalString(advance)

	conf, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	opts.currency = conf.Billing.DefaultCurrency()
	if timezone != "" {
		conf.Billing.Timezone = timezone
	}
	if opts.loc, err = conf.Billing.Location(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(conf.Logging, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := settle(opts, os.Stdout, logger, time.Now()); err != nil {
		logger.Error("settlement failed", zap.Error(err))
		os.Exit(1)
	}
}

// settle runs the whole flow and writes the report to stdout. now is the
// real instant; it is read on the billing clock.
func settle(opts options, stdout io.Writer, logger *zap.Logger, now time.Time) error {
	if opts.billed < 0 {
		return fmt.Errorf("%w: -billed %d is negative", generic.ErrInvalidBilledCount, opts.billed)
	}

	contract, err := loadContract(opts)
	if err != nil {
		return err
	}

	installments, err := contract.Schedule()
	if err != nil {
		return err
	}
	logger.Debug("schedule generated",
		zap.String("convention", string(contract.Terms.Convention)),
		zap.Int("installments", len(installments)))

	asOf := generic.WallClock(now, opts.loc)
	if opts.asOf != "" {
		if asOf, err = generic.ParseInstant(opts.asOf, opts.loc); err != nil {
			return fmt.Errorf("invalid -as-of: %w", err)
		}
	}

	var collections []generic.Collection
	if opts.collections != "" {
		result, err := sheet.ReadCollectionsFile(opts.collections, contract.ID, sheet.ImportOptions{
			Sheet:    opts.sheet,
			Currency: contract.Terms.Currency(),
			Location: opts.loc,
		})
		if err != nil {
			return err
		}
		for _, s := range result.Skipped {
			logger.Warn("statement row skipped",
				zap.String("sheet", result.Sheet),
				zap.Int("row", s.Row),
				zap.String("reason", s.Reason))
		}
		collections = result.Collections
		logger.Info("collections imported",
			zap.String("file", opts.collections),
			zap.Int("count", len(collections)))
	}

	billed := opts.billed
	if billed == 0 {
		billed = billing.BilledCountAsOf(installments, asOf)
	}

	if billed > 0 {
		result, err := contract.Settle(installments, billed, generic.ToEvents(collections), asOf)
		if err != nil {
			return err
		}
		installments = result.Installments
		logger.Info("settled",
			zap.Time("as_of", asOf),
			zap.Int("billed_count", billed),
			zap.String("applied_principal", result.AppliedPrincipal.Value.String()),
			zap.String("applied_overdue", result.AppliedOverdue.Value.String()),
			zap.String("unapplied", result.Unapplied.Value.String()))
	} else {
		logger.Info("nothing due yet, printing the schedule only", zap.Time("as_of", asOf))
	}

	tag, err := language.Parse(opts.lang)
	if err != nil {
		return fmt.Errorf("invalid -lang %q: %w", opts.lang, err)
	}
	pr := report.NewPrinter(stdout, tag)
	if err := pr.WriteTerms(contract.Terms); err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	if err := pr.WriteLedger(installments); err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	if err := pr.WriteSummary(billing.Summarize(installments, billed, contract.Terms.Currency())); err != nil {
		return err
	}

	if opts.out != "" {
		err := sheet.SaveLedger(opts.out, installments, sheet.ExportOptions{
			Columns:     pr.Columns(),
			Collections: collections,
		})
		if err != nil {
			return err
		}
		logger.Info("ledger written", zap.String("file", opts.out))
	}
	return nil
}

func loadContract(opts options) (*billing.Contract, error) {
	f := factory.NewContractFactory()
	f.DefaultCurrency = opts.currency

	if opts.contractFile != "" {
		data, err := os.ReadFile(opts.contractFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read contract: %w", err)
		}
		return f.ParseContract(string(data))
	}

	cj := opts.contract
	if cj.ID == "" {
		cj.ID = "cli"
	}
	return f.FromJSON(cj)
}
