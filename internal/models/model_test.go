package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuction_StatusAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := Auction{StartTime: start, EndTime: start.Add(time.Hour)}
	lead := 5 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want AuctionStatus
	}{
		{"before_start", start.Add(-time.Second), StatusScheduled},
		{"at_start", start, StatusLive},
		{"mid_auction", start.Add(30 * time.Minute), StatusLive},
		{"at_ending_soon_threshold", start.Add(55 * time.Minute), StatusEndingSoon},
		{"last_second", start.Add(time.Hour - time.Second), StatusEndingSoon},
		{"at_end", start.Add(time.Hour), StatusEnded},
		{"long_after", start.Add(24 * time.Hour), StatusEnded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, a.StatusAt(tc.now, lead))
		})
	}

	// a lead longer than the auction skips straight to ending_soon
	require.Equal(t, StatusEndingSoon, a.StatusAt(start, 2*time.Hour))
}

func TestAuction_NextTransition(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lead := 5 * time.Minute
	a := Auction{StartTime: start, EndTime: start.Add(time.Hour)}

	a.Status = StatusScheduled
	at, ok := a.NextTransition(lead)
	require.True(t, ok)
	require.Equal(t, start, at)

	a.Status = StatusLive
	at, _ = a.NextTransition(lead)
	require.Equal(t, start.Add(55*time.Minute), at)

	a.Status = StatusEndingSoon
	at, _ = a.NextTransition(lead)
	require.Equal(t, start.Add(time.Hour), at)

	a.Status = StatusEnded
	_, ok = a.NextTransition(lead)
	require.False(t, ok)
}

func TestAuctionStatus_Order(t *testing.T) {
	require.Less(t, StatusScheduled.Rank(), StatusLive.Rank())
	require.Less(t, StatusLive.Rank(), StatusEndingSoon.Rank())
	require.Less(t, StatusEndingSoon.Rank(), StatusEnded.Rank())
	require.False(t, AuctionStatus("paused").Valid())

	require.True(t, StatusLive.AcceptsBids())
	require.True(t, StatusEndingSoon.AcceptsBids())
	require.False(t, StatusScheduled.AcceptsBids())
	require.False(t, StatusEnded.AcceptsBids())
}
