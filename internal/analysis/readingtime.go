package analysis

import (
	"math"
	"strings"

	"PDFLibraryBot/internal/domain"
)

const (
	wpmRussian = 180
	wpmDefault = 200
	minWPM     = 60
)

// BaseWPM is the reading speed for plain text in lang.
func BaseWPM(lang string) int {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "ru") {
		return wpmRussian
	}
	return wpmDefault
}

// LevelCoefficient slows reading down for harder texts. raw is the level as the
// provider phrased it and distinguishes "very low"/"very high" extremes.
func LevelCoefficient(raw string, level domain.ComplexityLevel) float64 {
	raw = strings.ToLower(raw)
	very := strings.Contains(raw, "очень") || strings.Contains(raw, "very")
	switch level {
	case domain.LevelLow:
		if very {
			return 1.10
		}
		return 1.00
	case domain.LevelHigh:
		if very {
			return 0.55
		}
		return 0.70
	default:
		return 0.85
	}
}

// EffectiveWPM is BaseWPM scaled by coefficient, never below 60.
func EffectiveWPM(lang string, coefficient float64) int {
	if coefficient <= 0 {
		coefficient = 1
	}
	return int(math.Max(minWPM, math.Floor(float64(BaseWPM(lang))*coefficient+1e-9)))
}

// EstimateReadingMinutes converts a word count into minutes, rounded to 0.1.
func EstimateReadingMinutes(lang string, words int, coefficient float64) float64 {
	eff := float64(EffectiveWPM(lang, coefficient))
	minutes := math.Round(float64(words)/eff*10) / 10
	return math.Max(domain.MinReadingMinutes, minutes)
}

// ScannedReadingMinutes prices a page-scan breakdown at wpm: text minutes plus
// non-text seconds, each rounded to 0.01.
func ScannedReadingMinutes(b domain.ReadingBreakdown, wpm int) float64 {
	text := round2(float64(b.Words) / float64(max(1, wpm)))
	nonText := round2(float64(b.NonTextSeconds()) / 60)
	return round2(text + nonText)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
