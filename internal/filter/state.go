// Package filter derives the visible order list of a tab from the board:
// multi-word search, location, amount range, period, sort and paging, all
// applied locally without a server round trip.
package filter

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Period selects a submission date range relative to now.
type Period string

const (
	PeriodAll       Period = ""
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodLast3Days Period = "last-3-days"
	PeriodThisWeek  Period = "this-week"
	PeriodLastWeek  Period = "last-week"
	PeriodThisMonth Period = "this-month"
)

// Periods lists the selectable periods in cycling order.
var Periods = []Period{PeriodAll, PeriodToday, PeriodYesterday, PeriodLast3Days, PeriodThisWeek, PeriodLastWeek, PeriodThisMonth}

// Label returns the operator-facing name.
func (p Period) Label() string {
	switch p {
	case PeriodToday:
		return "Днес"
	case PeriodYesterday:
		return "Вчера"
	case PeriodLast3Days:
		return "Последните 3 дни"
	case PeriodThisWeek:
		return "Тази седмица"
	case PeriodLastWeek:
		return "Миналата седмица"
	case PeriodThisMonth:
		return "Този месец"
	}
	return "Всички"
}

// Next returns the period after p in cycling order.
func (p Period) Next() Period {
	for i, q := range Periods {
		if q == p {
			return Periods[(i+1)%len(Periods)]
		}
	}
	return PeriodAll
}

// SortField is the attribute rows are ordered by.
type SortField string

const (
	SortDate    SortField = "date"
	SortAmount  SortField = "amount"
	SortItems   SortField = "items"
	SortCompany SortField = "company"
	SortClient  SortField = "client"
)

// Sort is a field and direction pair.
type Sort struct {
	Field SortField `json:"field"`
	Desc  bool      `json:"desc"`
}

// Sorts lists the selectable orderings in cycling order. The first one is
// the default (newest first).
var Sorts = []Sort{
	{SortDate, true}, {SortDate, false},
	{SortAmount, true}, {SortAmount, false},
	{SortItems, true}, {SortItems, false},
	{SortCompany, false}, {SortCompany, true},
	{SortClient, false}, {SortClient, true},
}

// Next returns the ordering after s in cycling order.
func (s Sort) Next() Sort {
	for i, q := range Sorts {
		if q == s {
			return Sorts[(i+1)%len(Sorts)]
		}
	}
	return Sorts[0]
}

// Label returns the operator-facing name.
func (s Sort) Label() string {
	switch s.Field {
	case SortDate:
		if s.Desc {
			return "Най-нови"
		}
		return "Най-стари"
	case SortAmount:
		if s.Desc {
			return "Сума ↓"
		}
		return "Сума ↑"
	case SortItems:
		if s.Desc {
			return "Артикули ↓"
		}
		return "Артикули ↑"
	case SortCompany:
		if s.Desc {
			return "Фирма Я-А"
		}
		return "Фирма А-Я"
	case SortClient:
		if s.Desc {
			return "Клиент Я-А"
		}
		return "Клиент А-Я"
	}
	return string(s.Field)
}

// State is the active query of one console.
type State struct {
	Search    string           `json:"search,omitempty"`
	Location  string           `json:"location,omitempty"`
	MinAmount *decimal.Decimal `json:"minAmount,omitempty"`
	MaxAmount *decimal.Decimal `json:"maxAmount,omitempty"`
	Period    Period           `json:"period,omitempty"`
	Sort      Sort             `json:"sort"`
	Page      int              `json:"page,omitempty"`
}

// DefaultState returns the state an explicit reset goes back to.
func DefaultState() State {
	return State{Sort: Sorts[0]}
}

// Reset restores the defaults.
func (s *State) Reset() {
	*s = DefaultState()
}

// IsDefault reports whether no filter narrows the result.
func (s State) IsDefault() bool {
	return strings.TrimSpace(s.Search) == "" && s.Location == "" &&
		s.MinAmount == nil && s.MaxAmount == nil && s.Period == PeriodAll
}

// ParseAmount parses an amount bound. Empty input means no bound. A comma
// decimal separator is accepted.
func ParseAmount(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("невалидна сума %q", s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("сумата не може да е отрицателна")
	}
	return &d, nil
}

// SetAmount parses both bounds. On any error, including min above max,
// both bounds are cleared and the error describes the problem.
func (s *State) SetAmount(minText, maxText string) error {
	s.MinAmount, s.MaxAmount = nil, nil
	lo, err := ParseAmount(minText)
	if err != nil {
		return err
	}
	hi, err := ParseAmount(maxText)
	if err != nil {
		return err
	}
	if lo != nil && hi != nil && lo.GreaterThan(*hi) {
		return fmt.Errorf("минималната сума е по-голяма от максималната")
	}
	s.MinAmount, s.MaxAmount = lo, hi
	return nil
}
