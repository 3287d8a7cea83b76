package generic_test

import (
	"errors"
	"testing"

	"github.com/warp/lease-settlement/generic"
)

func TestPeriod_DaysInclusive(t *testing.T) {
	p := generic.NewPeriod(generic.Date(2023, 9, 15), generic.Date(2023, 9, 30))
	if p.Days() != 16 {
		t.Errorf("Sep 15 - Sep 30 should be 16 days, got %d", p.Days())
	}
	single := generic.NewPeriod(generic.Date(2023, 9, 15), generic.Date(2023, 9, 15))
	if single.Days() != 1 {
		t.Errorf("single day period should count 1, got %d", single.Days())
	}
}

func TestPeriod_Validate(t *testing.T) {
	ok := generic.NewPeriod(generic.Date(2024, 2, 1), generic.Date(2024, 2, 29))
	if err := ok.Validate(); err != nil {
		t.Errorf("whole February should be valid: %v", err)
	}

	spans := generic.NewPeriod(generic.Date(2023, 9, 15), generic.Date(2023, 10, 14))
	err := spans.Validate()
	if !errors.Is(err, generic.ErrProrationSpansMonths) {
		t.Errorf("expected ErrProrationSpansMonths, got %v", err)
	}
	var perr *generic.PeriodError
	if !errors.As(err, &perr) || perr.Period != spans {
		t.Errorf("expected PeriodError carrying the span, got %v", err)
	}

	inverted := generic.NewPeriod(generic.Date(2023, 9, 20), generic.Date(2023, 9, 10))
	if !errors.Is(inverted.Validate(), generic.ErrInvalidPeriod) {
		t.Error("inverted period should be ErrInvalidPeriod")
	}
}

func TestPeriod_String(t *testing.T) {
	p := generic.NewPeriod(generic.Date(2024, 2, 1), generic.Date(2024, 2, 29))
	if p.Days() != 29 {
		t.Errorf("February 2024 has 29 days, got %d", p.Days())
	}
	if p.String() != "[2024-02-01, 2024-02-29]" {
		t.Errorf("unexpected String(): %s", p)
	}
}
