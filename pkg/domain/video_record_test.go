package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreserve_NoMatchGetsFreshTimestamp(t *testing.T) {
	now := time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC)
	rec := VideoRecord{SessionNumber: "219", VideoDate: "2025-12-10", VideoTime: "11:30", ExternalID: "stale"}

	got := Preserve(rec, nil, now)

	assert.Empty(t, got.ExternalID)
	assert.Empty(t, got.Status)
	assert.Equal(t, "2025-12-12T09:00:00Z", got.LastCheck)
}

func TestPreserve_PublishedRowKeepsLastCheck(t *testing.T) {
	now := time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC)
	preserved := map[Slot]Preserved{
		{Date: "2025-12-10", Time: "11:30"}: {
			ExternalID: "abc123",
			LastCheck:  "2025-12-10T18:00:00Z",
			Status:     StatusSuccess,
			Extra:      map[string]string{"duration_minutes": "95"},
		},
	}
	rec := VideoRecord{SessionNumber: "219", VideoID: "999", VideoDate: "2025-12-10", VideoTime: "11:30"}

	got := Preserve(rec, preserved, now)

	assert.Equal(t, "abc123", got.ExternalID)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "2025-12-10T18:00:00Z", got.LastCheck)
	assert.Equal(t, "999", got.VideoID)
	assert.Equal(t, "95", got.Extra["duration_minutes"])
}

func TestPreserve_UnpublishedMatchRefreshesLastCheck(t *testing.T) {
	now := time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC)
	preserved := map[Slot]Preserved{
		{Date: "2025-12-10", Time: "11:30"}: {
			LastCheck:     "2025-12-10T18:00:00Z",
			Status:        StatusFailed,
			FailureReason: "download failed",
		},
	}
	rec := VideoRecord{SessionNumber: "219", VideoDate: "2025-12-10", VideoTime: "11:30"}

	got := Preserve(rec, preserved, now)

	assert.Empty(t, got.ExternalID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "download failed", got.FailureReason)
	assert.Equal(t, "2025-12-12T09:00:00Z", got.LastCheck)
}

func TestNewRecord_DefaultsVideoDateToSession(t *testing.T) {
	s := &SessionDescriptor{Number: "100", Date: "2025-11-04", PageURL: "https://example.org/s/100"}

	rec := NewRecord(s, VideoDescriptor{SourceID: "1", StartTime: "10:00"})

	assert.Equal(t, Identity{Session: "100", Date: "2025-11-04", Time: "10:00"}, rec.Identity())
	assert.Equal(t, "https://example.org/s/100", rec.PageURL)
}
