/*
Package factory provides JSON to Go contract conversion.

PURPOSE:
  Converts JSON contract definitions into billing.Contract values. The HTTP
  API, the demo scenarios and the settle CLI all describe contracts this way,
  so validation and defaults live in one place.

JSON SCHEMA:
  {
    "id": "ct-2023-0915",
    "name": "Sonata lease",
    "monthly_fee": "500000",
    "term_months": 36,
    "billing_day": 25,
    "delivery_date": "2023-09-15",
    "convention": "prepay",
    "advance_payment": "0",
    "currency": "KRW"
  }

  Amounts are decimal strings. Plain JSON numbers are accepted as well.
  convention accepts prepay/postpay and the contract labels 선납/후납.

USAGE:
  f := factory.NewContractFactory()
  contract, err := f.ParseContract(jsonString)
  installments, err := contract.Schedule()

SEE ALSO:
  - billing/types.go: ContractTerms and its validation
  - api/scenarios.go: Demo contracts
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ContractJSON is the JSON representation of a contract.
type ContractJSON struct {
	ID             string        `json:"id,omitempty"`
	Name           string        `json:"name"`
	MonthlyFee     DecimalString `json:"monthly_fee"`
	TermMonths     int           `json:"term_months"`
	BillingDay     int           `json:"billing_day"`
	DeliveryDate   string        `json:"delivery_date"`
	Convention     string        `json:"convention"`
	AdvancePayment DecimalString `json:"advance_payment,omitempty"`
	Currency       string        `json:"currency,omitempty"`
}

// DecimalString accepts "500000", "263013.70" or a bare JSON number and
// always marshals back to a string so no precision is lost.
type DecimalString string

func (d *DecimalString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = DecimalString(strings.TrimSpace(s))
		return nil
	}
	*d = DecimalString(b)
	return nil
}

// =============================================================================
// CONTRACT FACTORY
// =============================================================================

// ContractFactory converts JSON contracts to billing.Contract.
type ContractFactory struct {
	// DefaultCurrency applies when the JSON names none.
	DefaultCurrency generic.Currency
}

func NewContractFactory() *ContractFactory {
	return &ContractFactory{DefaultCurrency: generic.DefaultCurrency}
}

// ParseContract parses a JSON string into a validated Contract.
func (f *ContractFactory) ParseContract(jsonStr string) (*billing.Contract, error) {
	var cj ContractJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse contract JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts ContractJSON to a validated Contract. A missing id is
// filled with a fresh UUID.
func (f *ContractFactory) FromJSON(cj ContractJSON) (*billing.Contract, error) {
	cur := f.DefaultCurrency
	if cj.Currency != "" {
		cur = generic.Currency(strings.ToUpper(cj.Currency))
	}

	fee, err := parseAmount("monthly_fee", cj.MonthlyFee, cur)
	if err != nil {
		return nil, err
	}
	advance := generic.Amount{Value: decimal.Zero, Currency: cur}
	if cj.AdvancePayment != "" {
		if advance, err = parseAmount("advance_payment", cj.AdvancePayment, cur); err != nil {
			return nil, err
		}
	}

	delivery, err := generic.ParseDate(cj.DeliveryDate)
	if err != nil {
		return nil, &generic.TermsError{Field: "delivery_date", Value: cj.DeliveryDate, Err: generic.ErrInvalidPeriod}
	}

	conv, err := billing.ParseConvention(cj.Convention)
	if err != nil {
		return nil, err
	}

	terms := billing.ContractTerms{
		MonthlyFee:     fee,
		TermMonths:     cj.TermMonths,
		BillingDay:     cj.BillingDay,
		DeliveryDate:   delivery,
		Convention:     conv,
		AdvancePayment: advance,
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	id := cj.ID
	if id == "" {
		id = "ct-" + uuid.NewString()
	}

	return &billing.Contract{
		ID:    generic.ContractID(id),
		Name:  cj.Name,
		Terms: terms,
	}, nil
}

// ToJSON converts a Contract to ContractJSON.
func (f *ContractFactory) ToJSON(c *billing.Contract) ContractJSON {
	return ContractJSON{
		ID:             string(c.ID),
		Name:           c.Name,
		MonthlyFee:     DecimalString(c.Terms.MonthlyFee.Value.String()),
		TermMonths:     c.Terms.TermMonths,
		BillingDay:     c.Terms.BillingDay,
		DeliveryDate:   generic.FormatDate(c.Terms.DeliveryDate),
		Convention:     string(c.Terms.Convention),
		AdvancePayment: DecimalString(c.Terms.AdvancePayment.Value.String()),
		Currency:       string(c.Terms.Currency()),
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseAmount(field string, s DecimalString, cur generic.Currency) (generic.Amount, error) {
	if s == "" {
		return generic.Amount{}, &generic.TermsError{Field: field, Value: "", Err: generic.ErrInvalidAmount}
	}
	a, err := generic.ParseAmount(string(s), cur)
	if err != nil {
		return generic.Amount{}, &generic.TermsError{Field: field, Value: string(s), Err: generic.ErrInvalidAmount}
	}
	return a, nil
}
