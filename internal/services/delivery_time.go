// Package services contains the background pipeline: mailbox sync,
// classification workers and digest dispatch, plus the interval runner that
// schedules them.
package services

import (
	"fmt"
	"time"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
)

const deliveryTimeLayout = "15:04"

// NextDeliveryUTC computes the next digest delivery instant for the given
// preferences. Delivery times are local times of day in the user's timezone;
// the result is the earliest configured time strictly after the current
// local time, or the earliest time tomorrow when none remains today,
// converted back to UTC. Returns nil when no delivery times are configured.
func NextDeliveryUTC(prefs models.UserPreferences, nowUTC time.Time) (*time.Time, error) {
	if len(prefs.DeliveryTimes) == 0 {
		return nil, nil
	}

	loc, err := time.LoadLocation(prefs.TimeZoneID)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", prefs.TimeZoneID, err)
	}

	localNow := nowUTC.In(loc)

	var todayBest, earliest *time.Time
	for _, raw := range prefs.DeliveryTimes {
		parsed, err := time.Parse(deliveryTimeLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid delivery time %q: %w", raw, err)
		}

		candidate := time.Date(localNow.Year(), localNow.Month(), localNow.Day(),
			parsed.Hour(), parsed.Minute(), 0, 0, loc)

		if candidate.After(localNow) && (todayBest == nil || candidate.Before(*todayBest)) {
			c := candidate
			todayBest = &c
		}
		if earliest == nil || candidate.Before(*earliest) {
			c := candidate
			earliest = &c
		}
	}

	next := todayBest
	if next == nil {
		// Nothing left today: first slot tomorrow. Rebuilding via time.Date
		// keeps the wall-clock time stable across DST transitions.
		tomorrow := earliest.AddDate(0, 0, 1)
		rebuilt := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(),
			earliest.Hour(), earliest.Minute(), 0, 0, loc)
		next = &rebuilt
	}

	utc := next.UTC()
	return &utc, nil
}
