package services

import (
	"fmt"
	"time"
	_ "time/tzdata" // event zones must resolve on hosts without zoneinfo

	"ticketer/internal/models"
)

type timeOfDay struct {
	hour   int
	minute int
}

// CutoffPolicy holds per-category redemption cutoffs. A cutoff is a time of
// day in the event time zone; it applies to the calendar day of the scan.
type CutoffPolicy struct {
	cutoffs  map[models.TicketCategory]timeOfDay
	location *time.Location
}

// NewCutoffPolicy parses "HH:MM" cutoffs keyed by category and loads the
// event time zone.
func NewCutoffPolicy(cutoffs map[string]string, timezone string) (*CutoffPolicy, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid event timezone %q: %w", timezone, err)
	}

	policy := &CutoffPolicy{
		cutoffs:  make(map[models.TicketCategory]timeOfDay, len(cutoffs)),
		location: loc,
	}

	for category, value := range cutoffs {
		at, err := time.Parse("15:04", value)
		if err != nil {
			return nil, fmt.Errorf("invalid cutoff %q for category %s: %w", value, category, err)
		}
		policy.cutoffs[models.TicketCategory(category)] = timeOfDay{hour: at.Hour(), minute: at.Minute()}
	}

	return policy, nil
}

// CutoffFor returns the cutoff instant that applies to a scan at now, and
// false when the category has no cutoff.
func (p *CutoffPolicy) CutoffFor(category models.TicketCategory, now time.Time) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}

	tod, ok := p.cutoffs[category]
	if !ok {
		return time.Time{}, false
	}

	local := now.In(p.location)
	return time.Date(local.Year(), local.Month(), local.Day(), tod.hour, tod.minute, 0, 0, p.location), true
}

// Expired reports whether a scan at now is past the category's cutoff.
// The cutoff instant itself is still valid.
func (p *CutoffPolicy) Expired(category models.TicketCategory, now time.Time) bool {
	cutoff, ok := p.CutoffFor(category, now)
	if !ok {
		return false
	}
	return now.After(cutoff)
}
