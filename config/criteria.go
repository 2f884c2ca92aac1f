package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// TimeLayout is the accepted date-time format for cutoff/until arguments
// (UTC, ISO-8601 without fractional seconds).
const TimeLayout = "2006-01-02T15:04:05Z"

// ErrEmptyCriteria is returned when no selection criterion is present.
// An empty criteria set never means "select everything".
var ErrEmptyCriteria = errors.New("no selection criteria provided: need a date window, a pattern, or explicit names")

// Criteria selects which resources an enumeration visits. At least one of
// the date window, the pattern, or the explicit name list must be set.
type Criteria struct {
	CutoffDate *time.Time `json:"cutoff_date,omitempty" yaml:"cutoff_date,omitempty" toml:"cutoff_date,omitempty"` // exclusive lower bound on creation time
	UntilDate  *time.Time `json:"until_date,omitempty" yaml:"until_date,omitempty" toml:"until_date,omitempty"`    // inclusive upper bound on creation time
	Pattern    string     `json:"pattern,omitempty" yaml:"pattern,omitempty" toml:"pattern,omitempty"`             // case-insensitive regular expression on the display name
	Names      []string   `json:"names,omitempty" yaml:"names,omitempty" toml:"names,omitempty"`                   // explicit allow-list, merged with criteria matches
	Exclude    []string   `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude,omitempty"`             // names never selected, regardless of other criteria

	re *regexp.Regexp
}

// ParseTime parses a cutoff/until argument in TimeLayout, always UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("incorrect date-time format %q, use YYYY-MM-DDTHH:MM:SSZ (UTC): %w", s, err)
	}
	return t.UTC(), nil
}

// Validate checks that at least one criterion is present and that the
// pattern compiles.
func (c *Criteria) Validate() error {
	if c.CutoffDate == nil && c.UntilDate == nil && c.Pattern == "" && len(c.Names) == 0 {
		return ErrEmptyCriteria
	}
	if c.CutoffDate != nil && c.UntilDate != nil && !c.CutoffDate.Before(*c.UntilDate) {
		return fmt.Errorf("cutoff date %s is not before until date %s",
			c.CutoffDate.Format(TimeLayout), c.UntilDate.Format(TimeLayout))
	}
	if c.Pattern != "" {
		re, err := regexp.Compile("(?i)" + c.Pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", c.Pattern, err)
		}
		c.re = re
	}
	return nil
}

// HasWindow reports whether a creation-time window is set.
func (c *Criteria) HasWindow() bool {
	return c.CutoffDate != nil || c.UntilDate != nil
}

// InWindow reports whether created falls inside (cutoff, until].
// An unset bound is open.
func (c *Criteria) InWindow(created time.Time) bool {
	if c.CutoffDate != nil && !created.After(*c.CutoffDate) {
		return false
	}
	if c.UntilDate != nil && created.After(*c.UntilDate) {
		return false
	}
	return true
}

// MatchesPattern reports whether name matches the case-insensitive pattern.
// With no pattern set, everything matches.
func (c *Criteria) MatchesPattern(name string) bool {
	if c.Pattern == "" {
		return true
	}
	if c.re == nil {
		// Validate was not called; compile on demand and treat a bad
		// pattern as matching nothing.
		re, err := regexp.Compile("(?i)" + c.Pattern)
		if err != nil {
			return false
		}
		c.re = re
	}
	return c.re.MatchString(name)
}

// Excluded reports whether name is on the exclusion list.
func (c *Criteria) Excluded(name string) bool {
	for _, e := range c.Exclude {
		if e == name {
			return true
		}
	}
	return false
}
