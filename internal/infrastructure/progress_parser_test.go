package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYTDLPProgressParser_Parse(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		fraction float64
		size     string
		rate     string
		eta      string
	}{
		{
			name:     "typical line",
			line:     "[download]  45.2% of 5.67MiB at 2.3MiB/s ETA 00:01",
			fraction: 0.452,
			size:     "5.67MiB",
			rate:     "2.3MiB/s",
			eta:      "00:01",
		},
		{
			name:     "approximate size with fragments",
			line:     "[download]  12.0% of ~  85.49MiB at    2.48MiB/s ETA 00:27 (frag 4/17)",
			fraction: 0.12,
			size:     "85.49MiB",
			rate:     "2.48MiB/s",
			eta:      "00:27",
		},
		{
			name:     "completion line",
			line:     "[download] 100% of   64.00MiB in 00:01",
			fraction: 1,
			size:     "64.00MiB",
		},
		{
			name:     "unknown rate",
			line:     "[download]   0.0% of 3.10MiB at Unknown B/s ETA Unknown",
			fraction: 0,
			size:     "3.10MiB",
			rate:     "Unknown",
			eta:      "Unknown",
		},
	}

	parser := NewYTDLPProgressParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, ok := parser.Parse(tt.line)
			require.True(t, ok)
			assert.InDelta(t, tt.fraction, update.Fraction, 1e-9)
			assert.Equal(t, tt.size, update.Size)
			assert.Equal(t, tt.rate, update.Rate)
			assert.Equal(t, tt.eta, update.ETA)
		})
	}
}

func TestYTDLPProgressParser_IgnoresUnrelatedLines(t *testing.T) {
	parser := NewYTDLPProgressParser()

	lines := []string{
		"",
		"[youtube] Extracting URL: https://www.youtube.com/watch?v=abc123",
		"[download] Destination: /music/Song - Band.webm",
		"[ExtractAudio] Destination: /music/Song - Band.m4a",
		"ERROR: [youtube] abc123: Sign in to confirm you're not a bot",
		"[download] Destination: /music/Song NaN% - Band.webm",
		"[download] Destination: /music/Inf% - Band.webm",
		"[download] -Infinity% of 3MiB",
	}

	for _, line := range lines {
		_, ok := parser.Parse(line)
		assert.False(t, ok, "line should be ignored: %q", line)
	}
}

func TestYTDLPProgressParser_ClampsFraction(t *testing.T) {
	update, ok := NewYTDLPProgressParser().Parse("[download] 250% of 1MiB")
	require.True(t, ok)
	assert.Equal(t, 1.0, update.Fraction)
}
