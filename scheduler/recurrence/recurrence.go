// Package recurrence builds bounded recurrence definitions from structured
// rule specs.  Every definition persisted by the scheduler is finite: an
// open-ended rule is bounded at build time with either a concrete occurrence
// count or a concrete UNTIL instant.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrInvalidRule is returned when a rule spec cannot be turned into a legal
// recurrence definition.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Frequency enumerates the supported RRULE frequencies.
type Frequency int

const (
	Secondly Frequency = iota
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

func (f Frequency) String() string {
	switch f {
	case Secondly:
		return "SECONDLY"
	case Minutely:
		return "MINUTELY"
	case Hourly:
		return "HOURLY"
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	case Yearly:
		return "YEARLY"
	default:
		return "DAILY"
	}
}

func (f Frequency) rrule() (rrule.Frequency, error) {
	switch f {
	case Secondly:
		return rrule.SECONDLY, nil
	case Minutely:
		return rrule.MINUTELY, nil
	case Hourly:
		return rrule.HOURLY, nil
	case Daily:
		return rrule.DAILY, nil
	case Weekly:
		return rrule.WEEKLY, nil
	case Monthly:
		return rrule.MONTHLY, nil
	case Yearly:
		return rrule.YEARLY, nil
	default:
		return 0, fmt.Errorf("%w: unknown frequency %d", ErrInvalidRule, int(f))
	}
}

// ParseFrequency validates a frequency name.
func ParseFrequency(value string) (Frequency, error) {
	switch value {
	case "SEC", "SECONDLY":
		return Secondly, nil
	case "MIN", "MINUTELY":
		return Minutely, nil
	case "HOU", "HOURLY":
		return Hourly, nil
	case "DAI", "DAILY":
		return Daily, nil
	case "WEE", "WEEKLY":
		return Weekly, nil
	case "MON", "MONTHLY":
		return Monthly, nil
	case "YEA", "YEARLY":
		return Yearly, nil
	default:
		return 0, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, value)
	}
}

// Weekday is a BYDAY entry: a day of week with an optional ordinal
// (e.g. 2nd Tuesday of the month).
type Weekday struct {
	Day     time.Weekday
	Ordinal int // 0 means every matching weekday
}

func (w Weekday) rrule() rrule.Weekday {
	var day rrule.Weekday
	switch w.Day {
	case time.Monday:
		day = rrule.MO
	case time.Tuesday:
		day = rrule.TU
	case time.Wednesday:
		day = rrule.WE
	case time.Thursday:
		day = rrule.TH
	case time.Friday:
		day = rrule.FR
	case time.Saturday:
		day = rrule.SA
	default:
		day = rrule.SU
	}
	if w.Ordinal != 0 {
		return day.Nth(w.Ordinal)
	}
	return day
}

// Rule is one structured repeating rule (FREQ/INTERVAL/BYxxx/COUNT/UNTIL/WKST).
type Rule struct {
	Freq       Frequency
	Interval   int
	Count      int
	Until      *time.Time
	BySecond   []int
	ByMinute   []int
	ByHour     []int
	ByDay      []Weekday
	ByMonthDay []int
	ByYearDay  []int
	ByWeekNo   []int
	ByMonth    []int
	BySetPos   []int
	WeekStart  *time.Weekday
}

// Ruleset is the caller-supplied add/exclude rule tree: at most one
// repeating rule plus explicit single-instant add/exclude sets.
type Ruleset struct {
	Rule         *Rule
	AddDates     []time.Time
	ExcludeDates []time.Time
}

// Horizons bound open-ended rules per frequency.
type Horizons struct {
	MaxDays           int
	MaxWeeks          int
	MaxMonths         int
	MaxYears          int
	MaxYearsOtherFreq int
}

// DefaultHorizons returns the stock expansion limits.
func DefaultHorizons() Horizons {
	return Horizons{
		MaxDays:           730,
		MaxWeeks:          520,
		MaxMonths:         360,
		MaxYears:          100,
		MaxYearsOtherFreq: 1,
	}
}

func (h Horizons) end(start time.Time, freq Frequency) time.Time {
	switch freq {
	case Daily:
		return start.AddDate(0, 0, h.MaxDays)
	case Weekly:
		return start.AddDate(0, 0, 7*h.MaxWeeks)
	case Monthly:
		return start.AddDate(0, h.MaxMonths, 0)
	case Yearly:
		return start.AddDate(h.MaxYears, 0, 0)
	default:
		return start.AddDate(h.MaxYearsOtherFreq, 0, 0)
	}
}

// Definition is a canonical, always-bounded recurrence definition: a rule
// expression plus explicit add/exclude instants.
type Definition struct {
	// Rule is the canonical RRULE value, empty when the definition consists
	// of explicit dates only.  When present it always carries a concrete
	// COUNT or UNTIL.
	Rule string
	// Count is the bounded occurrence count; zero when the rule is bounded
	// by Until instead.
	Count int
	// Until is the bounded end instant; zero when the rule is bounded by
	// Count instead.
	Until time.Time

	RDates  []time.Time
	ExDates []time.Time
}

// Bounded reports whether the definition is finite.  A well-formed
// definition is always bounded; this exists for storage-side assertions.
func (d *Definition) Bounded() bool {
	if d.Rule == "" {
		return true
	}
	return d.Count > 0 || !d.Until.IsZero()
}

// Clone returns a deep copy.
func (d *Definition) Clone() *Definition {
	dup := *d
	dup.RDates = append([]time.Time(nil), d.RDates...)
	dup.ExDates = append([]time.Time(nil), d.ExDates...)
	return &dup
}

// AddExDate appends an excluded instant unless already present.
func (d *Definition) AddExDate(t time.Time) {
	for _, ex := range d.ExDates {
		if ex.Equal(t) {
			return
		}
	}
	d.ExDates = append(d.ExDates, t)
}

// maxBoundingScan caps the number of occurrences walked while estimating a
// count, so a pathological rule cannot stall the request.
const maxBoundingScan = 100000

// Build turns a ruleset into a bounded definition anchored at the series
// start.  A declared COUNT is replaced by the estimated occurrence count
// actually reachable within the horizon; a rule with neither COUNT nor
// UNTIL gets an estimated UNTIL computed from the per-frequency horizon.
func Build(spec Ruleset, start time.Time, hz Horizons) (*Definition, error) {
	def := &Definition{
		RDates:  append([]time.Time(nil), spec.AddDates...),
		ExDates: append([]time.Time(nil), spec.ExcludeDates...),
	}
	if spec.Rule == nil {
		return def, nil
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: recurrence used without a start instant", ErrInvalidRule)
	}

	rule := *spec.Rule
	freq, err := rule.Freq.rrule()
	if err != nil {
		return nil, err
	}
	if rule.Count < 0 {
		return nil, fmt.Errorf("%w: negative count", ErrInvalidRule)
	}
	if rule.Interval < 0 {
		return nil, fmt.Errorf("%w: negative interval", ErrInvalidRule)
	}

	opt := rrule.ROption{
		Freq:       freq,
		Interval:   rule.Interval,
		Dtstart:    start,
		Bysecond:   rule.BySecond,
		Byminute:   rule.ByMinute,
		Byhour:     rule.ByHour,
		Bymonthday: rule.ByMonthDay,
		Byyearday:  rule.ByYearDay,
		Byweekno:   rule.ByWeekNo,
		Bymonth:    rule.ByMonth,
		Bysetpos:   rule.BySetPos,
	}
	for _, wd := range rule.ByDay {
		opt.Byweekday = append(opt.Byweekday, wd.rrule())
	}
	if rule.WeekStart != nil {
		opt.Wkst = Weekday{Day: *rule.WeekStart}.rrule()
	}
	if rule.Until != nil {
		opt.Until = rule.Until.UTC()
	}

	horizon := hz.end(start, rule.Freq)
	if rule.Count > 0 {
		opt.Count = rule.Count
		estimated, err := estimateCount(opt, horizon)
		if err != nil {
			return nil, err
		}
		opt.Count = estimated
		opt.Until = time.Time{}
		def.Count = estimated
	} else if rule.Until == nil {
		// Open-ended rule: bound at the horizon.
		opt.Until = horizon.UTC()
		def.Until = opt.Until
	} else {
		def.Until = opt.Until
	}

	if _, err := rrule.NewRRule(opt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	// RRuleString renders only the rule expression; RRule.String would
	// prepend a DTSTART line and the RRULE: name.
	def.Rule = opt.RRuleString()
	return def, nil
}

// estimateCount walks the rule and counts occurrences up to the declared
// COUNT, clipped at the horizon.
func estimateCount(opt rrule.ROption, horizon time.Time) (int, error) {
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	next := r.Iterator()
	count := 0
	for i := 0; i < maxBoundingScan; i++ {
		v, ok := next()
		if !ok || v.After(horizon) {
			break
		}
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: rule yields no occurrences", ErrInvalidRule)
	}
	return count, nil
}
