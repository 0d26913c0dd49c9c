package infrastructure

import (
	"math"
	"strconv"
	"strings"

	"github.com/yourusername/tunegrab/internal/domain"
)

// progressMarker prefixes every yt-dlp download progress line, e.g.
//
//	[download]  45.2% of 5.67MiB at 2.3MiB/s ETA 00:01
//	[download]  12.0% of ~  85.49MiB at  2.48MiB/s ETA 00:27 (frag 4/17)
const progressMarker = "[download]"

// YTDLPProgressParser extracts progress from yt-dlp's human-readable output.
// The format is not a stable interface, so lines it does not recognise are
// ignored rather than reported.
type YTDLPProgressParser struct{}

// NewYTDLPProgressParser creates a new parser
func NewYTDLPProgressParser() *YTDLPProgressParser {
	return &YTDLPProgressParser{}
}

// Parse implements domain.ProgressParser
func (YTDLPProgressParser) Parse(line string) (domain.ProgressUpdate, bool) {
	if !strings.Contains(line, progressMarker) || !strings.Contains(line, "%") {
		return domain.ProgressUpdate{}, false
	}

	tokens := strings.Fields(line)
	var update domain.ProgressUpdate
	found := false

	for i, tok := range tokens {
		switch {
		case !found && strings.HasSuffix(tok, "%"):
			pct, err := strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
			if err != nil || math.IsNaN(pct) || math.IsInf(pct, 0) {
				continue
			}
			update.Fraction = clampFraction(pct / 100)
			found = true
		case tok == "of":
			update.Size = tokenAfter(tokens, i, true)
		case tok == "at":
			update.Rate = tokenAfter(tokens, i, false)
		case tok == "ETA":
			update.ETA = tokenAfter(tokens, i, false)
		}
	}

	if !found {
		return domain.ProgressUpdate{}, false
	}
	return update, true
}

// tokenAfter returns the token following index i. With skipApprox set, a lone
// "~" (yt-dlp's estimated-size marker) is skipped.
func tokenAfter(tokens []string, i int, skipApprox bool) string {
	j := i + 1
	if skipApprox && j < len(tokens) && tokens[j] == "~" {
		j++
	}
	if j >= len(tokens) {
		return ""
	}
	return strings.TrimPrefix(tokens[j], "~")
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
