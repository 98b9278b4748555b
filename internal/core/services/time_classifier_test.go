package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
)

func TestTimeClassifier_Classify(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	classifier := NewTimeClassifier(loc)

	tests := []struct {
		name      string
		at        time.Time
		wantShift domain.Shift
		wantDate  string
	}{
		{
			name:      "last second before morning is night",
			at:        time.Date(2025, 3, 10, 6, 59, 59, 0, loc),
			wantShift: domain.ShiftNight,
			wantDate:  "2025-03-10",
		},
		{
			name:      "morning starts at 07:00",
			at:        time.Date(2025, 3, 10, 7, 0, 0, 0, loc),
			wantShift: domain.ShiftMorning,
			wantDate:  "2025-03-10",
		},
		{
			name:      "last second of morning",
			at:        time.Date(2025, 3, 10, 14, 59, 59, 0, loc),
			wantShift: domain.ShiftMorning,
			wantDate:  "2025-03-10",
		},
		{
			name:      "afternoon starts at 15:00",
			at:        time.Date(2025, 3, 10, 15, 0, 0, 0, loc),
			wantShift: domain.ShiftAfternoon,
			wantDate:  "2025-03-10",
		},
		{
			name:      "last second of afternoon",
			at:        time.Date(2025, 3, 10, 22, 59, 59, 0, loc),
			wantShift: domain.ShiftAfternoon,
			wantDate:  "2025-03-10",
		},
		{
			name:      "night starts at 23:00",
			at:        time.Date(2025, 3, 10, 23, 0, 0, 0, loc),
			wantShift: domain.ShiftNight,
			wantDate:  "2025-03-10",
		},
		{
			name:      "early morning hours are night",
			at:        time.Date(2025, 3, 11, 2, 30, 0, 0, loc),
			wantShift: domain.ShiftNight,
			wantDate:  "2025-03-11",
		},
		{
			name:      "UTC timestamp is classified in the operating zone",
			at:        time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC), // 22:00 on the 10th in Sao Paulo
			wantShift: domain.ShiftAfternoon,
			wantDate:  "2025-03-10",
		},
		{
			name:      "UTC timestamp crosses the local date boundary",
			at:        time.Date(2025, 3, 11, 2, 30, 0, 0, time.UTC), // 23:30 on the 10th in Sao Paulo
			wantShift: domain.ShiftNight,
			wantDate:  "2025-03-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shift, date := classifier.Classify(tt.at)
			assert.Equal(t, tt.wantShift, shift)
			assert.Equal(t, tt.wantDate, date)
		})
	}
}
