package vin

import (
	"regexp"
	"strings"
)

// Scoring weights. These are tuned values carried over from field use, not
// derived quantities; treat them as open tuning parameters.
const (
	scoreBase          = 0.40
	scoreExactMatch    = 0.40
	scoreCountryDigit  = 0.15
	scoreMakerLetters  = 0.10
	scoreDescriptor    = 0.10
	scoreCheckSlot     = 0.05
	scoreYearPlant     = 0.05
	scoreCriticalKeep  = 0.03
	scoreCheckKeep     = 0.02
	scoreYearKeep      = 0.02
	scoreLabelContext  = 0.08
	scoreLeadPattern   = 0.05
	scoreKnownPrefix   = 0.10
	penaltyPerChange   = 0.03
	penaltyPerLenDelta = 0.10

	// ScoreCeiling caps every reported confidence. Perfect certainty is
	// never reported.
	ScoreCeiling = 0.98
)

// criticalPositions are the slots whose survival through correction is worth
// an extra vote of confidence: WMI, check digit, model year and plant code.
var criticalPositions = [...]int{0, 1, 2, 8, 9, 10}

var labelPattern = regexp.MustCompile(`(?i)\b(?:VIN|V\.I\.N|VEHICLE\s+ID(?:ENTIFICATION)?|CHASSIS|SERIAL)\b`)

// Score rates a corrected candidate against its raw form and the surrounding
// recognized text. Pure and deterministic; the result is clamped to
// [0, ScoreCeiling].
func Score(original, corrected, fullText string) float64 {
	score := scoreBase
	original = strings.ToUpper(original)

	if original == corrected {
		score += scoreExactMatch
	}

	if len(corrected) == Length {
		if c := corrected[0]; c >= '1' && c <= '5' {
			score += scoreCountryDigit
		}
		if isLetter(corrected[1]) && isLetter(corrected[2]) {
			score += scoreMakerLetters
		}
		if allVINChars(corrected[3:8]) {
			score += scoreDescriptor
		}
		if isCheckDigitChar(corrected[checkDigitIndex]) {
			score += scoreCheckSlot
		}
		if isModelYearChar(corrected[modelYearIndex]) && isVINChar(corrected[plantCodeIndex]) {
			score += scoreYearPlant
		}

		for _, pos := range criticalPositions {
			if pos < len(original) && original[pos] == corrected[pos] {
				score += scoreCriticalKeep
			}
		}
		if isCheckDigitChar(corrected[checkDigitIndex]) {
			score += scoreCheckKeep
		}
		if isLetter(corrected[modelYearIndex]) && isModelYearChar(corrected[modelYearIndex]) {
			score += scoreYearKeep
		}
	}

	score -= penaltyPerChange * float64(changedChars(original, corrected))
	score -= penaltyPerLenDelta * float64(absInt(len(original)-len(corrected)))

	if labelPattern.MatchString(fullText) {
		score += scoreLabelContext
	}
	if hasPlausibleLead(corrected) {
		score += scoreLeadPattern
	}
	if len(corrected) >= 2 {
		if _, ok := commonPrefixes[corrected[:2]]; ok {
			score += scoreKnownPrefix
		}
	}

	return clamp(score, 0, ScoreCeiling)
}

// hasPlausibleLead reports whether s starts like a North American VIN:
// a digit 1-9 followed by a letter.
func hasPlausibleLead(s string) bool {
	return len(s) >= 2 && s[0] >= '1' && s[0] <= '9' && isLetter(s[1])
}

func allVINChars(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isVINChar(s[i]) {
			return false
		}
	}
	return true
}

func changedChars(original, corrected string) int {
	n := len(original)
	if len(corrected) < n {
		n = len(corrected)
	}
	changed := 0
	for i := 0; i < n; i++ {
		if original[i] != corrected[i] {
			changed++
		}
	}
	return changed
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
