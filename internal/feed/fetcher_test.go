package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFeedURL(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     string
		wantCode int // 0 = no error
	}{
		{"https passes", "https://example.com/cal.ics", "https://example.com/cal.ics", 0},
		{"webcal normalized", "webcal://example.com/cal.ics", "https://example.com/cal.ics", 0},
		{"webcal uppercase scheme", "WEBCAL://example.com/cal.ics", "https://example.com/cal.ics", 0},
		{"plain http rejected", "http://example.com/cal.ics", "", 400},
		{"ftp rejected", "ftp://example.com/cal.ics", "", 400},
		{"empty rejected", "", "", 400},
		{"no host rejected", "https:///cal.ics", "", 400},
		{"localhost blocked", "https://localhost/cal.ics", "", 403},
		{"loopback blocked", "https://127.0.0.1/cal.ics", "", 403},
		{"private range blocked", "https://10.0.0.8/cal.ics", "", 403},
		{"rfc1918 blocked", "https://192.168.1.20/cal.ics", "", 403},
		{"link local blocked", "https://169.254.10.10/cal.ics", "", 403},
		{"metadata ip blocked", "https://169.254.169.254/latest/meta-data", "", 403},
		{"metadata hostname blocked", "https://metadata.google.internal/computeMetadata", "", 403},
		{"unspecified blocked", "https://0.0.0.0/cal.ics", "", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFeedURL(tt.in)
			if tt.wantCode == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			assert.True(t, IsRelayError(err, tt.wantCode), "want code %d, got %v", tt.wantCode, err)
		})
	}
}

func TestFetchRejectsBeforeAnyRequest(t *testing.T) {
	f := NewFetcher()
	_, err := f.Fetch(context.Background(), "https://127.0.0.1/cal.ics")
	assert.True(t, IsRelayError(err, 403))

	_, err = f.Fetch(context.Background(), "http://example.com/cal.ics")
	assert.True(t, IsRelayError(err, 400))
}

func TestRedactURLKeepsHostOnly(t *testing.T) {
	assert.Equal(t, "https://example.com/...", redactURL("https://example.com/private/cal.ics?token=abcd"))
}
