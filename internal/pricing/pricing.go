// Package pricing decides which price amounts of an event apply at a given
// instant, including the early-bird switch.
package pricing

import (
	"time"

	"github.com/Shivanand-hulikatti/seminars/internal/model"
)

// Kind names one of the six price fields.
type Kind string

const (
	Regular      Kind = "regular"
	RegularBoard Kind = "regular_board"
	Special      Kind = "special"
	SpecialBoard Kind = "special_board"
	RegularEarly Kind = "regular_early"
	SpecialEarly Kind = "special_early"
)

// Price is one applicable amount.
type Price struct {
	Kind   Kind    `json:"kind"`
	Amount float64 `json:"amount"`
}

// EarlyBirdApplies reports whether e's early-bird deadline is set and not
// yet passed at now.
func EarlyBirdApplies(e *model.Event, now time.Time) bool {
	return e.HasEarlyBirdDeadline() && !now.After(e.EarlyBirdDeadline)
}

// ApplicablePrices returns the prices of e that apply at now. Prices apply
// when set; early-bird prices only while the early-bird deadline has not
// passed. A regular price of 0 means free and applies only when no other
// price is set at all. Prices are read from the topic of a date.
func ApplicablePrices(e *model.Event, now time.Time) []Price {
	p := e.TopicDetails().Prices

	prices := make([]Price, 0, 6)
	if p.Regular > 0 || IsFree(p) {
		prices = append(prices, Price{Kind: Regular, Amount: p.Regular})
	}
	add := func(kind Kind, amount float64) {
		if amount > 0 {
			prices = append(prices, Price{Kind: kind, Amount: amount})
		}
	}
	add(RegularBoard, p.RegularBoard)
	add(Special, p.Special)
	add(SpecialBoard, p.SpecialBoard)
	if EarlyBirdApplies(e, now) {
		add(RegularEarly, p.RegularEarly)
		add(SpecialEarly, p.SpecialEarly)
	}
	return prices
}

// IsFree reports whether no price amount is set.
func IsFree(p model.Prices) bool {
	return p == model.Prices{}
}

// MatchesMaximum reports whether any applicable price is <= maximum. A
// maximum of 0 matches everything.
func MatchesMaximum(e *model.Event, now time.Time, maximum float64) bool {
	if maximum == 0 {
		return true
	}
	for _, p := range ApplicablePrices(e, now) {
		if p.Amount <= maximum {
			return true
		}
	}
	return false
}

// MatchesMinimum reports whether any applicable price is >= minimum. A
// minimum of 0 matches everything.
func MatchesMinimum(e *model.Event, now time.Time, minimum float64) bool {
	if minimum == 0 {
		return true
	}
	for _, p := range ApplicablePrices(e, now) {
		if p.Amount >= minimum {
			return true
		}
	}
	return false
}

// CurrentRegularPrice is the price a regular attendee pays at now: the
// early-bird amount while it applies, the regular amount otherwise.
func CurrentRegularPrice(e *model.Event, now time.Time) float64 {
	p := e.TopicDetails().Prices
	if p.RegularEarly > 0 && EarlyBirdApplies(e, now) {
		return p.RegularEarly
	}
	return p.Regular
}
