package services

import (
	"time"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
)

// TimeClassifier derives the shift and activity date for an event timestamp.
// All classification happens in the operating timezone, not the server's
// local zone: an event at 23:30 UTC may still be an afternoon event locally.
type TimeClassifier struct {
	location *time.Location
}

func NewTimeClassifier(location *time.Location) *TimeClassifier {
	return &TimeClassifier{location: location}
}

// Classify maps a timestamp to its shift and calendar date in the operating
// timezone. Shift boundaries are inclusive at the start, exclusive at the end:
// morning is [07:00, 15:00), afternoon [15:00, 23:00), night the rest.
func (c *TimeClassifier) Classify(at time.Time) (domain.Shift, string) {
	local := at.In(c.location)

	var shift domain.Shift
	switch hour := local.Hour(); {
	case hour >= 7 && hour < 15:
		shift = domain.ShiftMorning
	case hour >= 15 && hour < 23:
		shift = domain.ShiftAfternoon
	default:
		shift = domain.ShiftNight
	}

	return shift, local.Format("2006-01-02")
}
