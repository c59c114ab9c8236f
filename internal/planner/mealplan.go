package planner

import (
	"errors"
	"fmt"
	"time"

	"whats-cooking/internal/catalog"

	log "github.com/sirupsen/logrus"
)

// DateLayout is the plan key format. Lexicographic order equals
// chronological order.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDate means a plan date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid plan date")
	// ErrPastDate means an interactive caller tried to plan for a past day.
	ErrPastDate = errors.New("cannot plan for a past date")
)

// DayPlan holds the selected items per category for one date. Items are
// full copies taken at selection time.
type DayPlan map[catalog.Category][]catalog.Item

// MenuPlan maps YYYY-MM-DD to that day's plan.
type MenuPlan map[string]DayPlan

// DatedPlan pairs a date with its plan for ordered listings.
type DatedPlan struct {
	Date  string  `json:"date"`
	Meals DayPlan `json:"meals"`
}

// Clone deep-copies the day.
func (d DayPlan) Clone() DayPlan {
	out := make(DayPlan, len(d))
	for cat, items := range d {
		out[cat] = catalog.CloneItems(items)
	}
	return out
}

// ItemCount is the number of items across every category.
func (d DayPlan) ItemCount() int {
	n := 0
	for _, items := range d {
		n += len(items)
	}
	return n
}

// prune drops empty and unknown categories.
func (d DayPlan) prune() {
	for cat, items := range d {
		if !cat.Valid() {
			log.Warnf("Dropping %d planned items under unknown category %q", len(items), cat)
			delete(d, cat)
			continue
		}
		if len(items) == 0 {
			delete(d, cat)
		}
	}
}

// Clone deep-copies the plan.
func (p MenuPlan) Clone() MenuPlan {
	out := make(MenuPlan, len(p))
	for date, day := range p {
		out[date] = day.Clone()
	}
	return out
}

// prune drops empty and unknown categories, then dates left with nothing.
func (p MenuPlan) prune() {
	for date, day := range p {
		day.prune()
		if len(day) == 0 {
			delete(p, date)
		}
	}
}

// Today formats now as a plan date.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// ValidateDate checks the YYYY-MM-DD format.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// ValidatePlanDate is the interactive planner's precondition: a valid date
// that is not before today. The stores do not enforce it, but planning a
// past date would let the archiver treat fresh selections as history.
func ValidatePlanDate(date, today string) error {
	if err := ValidateDate(date); err != nil {
		return err
	}
	if date < today {
		return fmt.Errorf("%w: %s is before %s", ErrPastDate, date, today)
	}
	return nil
}
