package vin

import (
	"regexp"
	"strings"
)

// Candidate is a validated, scored extraction result.
type Candidate struct {
	Raw               string
	VIN               string
	Confidence        float64
	KnownManufacturer bool
}

// Candidate-shape patterns intentionally admit I, O and Q: OCR output is
// noisy, and the corrector maps them into the legal alphabet afterwards.
// "Looks like a VIN" and "is a valid VIN" stay two distinct predicates.
var (
	labeledRun    = regexp.MustCompile(`(?i)\b(?:VIN|V\.I\.N\.?|VEHICLE\s+ID(?:ENTIFICATION)?(?:\s+(?:NO|NUMBER))?|CHASSIS(?:\s+(?:NO|NUMBER))?|SERIAL(?:\s+(?:NO|NUMBER))?)\b[\s:#.]*([A-Z0-9][A-Z0-9 \-]{15,40})`)
	standaloneRun = regexp.MustCompile(`\b[A-Z0-9]{17}\b`)
	lineAlnumRun  = regexp.MustCompile(`[A-Z0-9]{15,20}`)
	nonAlnum      = regexp.MustCompile(`[^A-Z0-9]`)
)

const (
	acceptFloor    = 0.50
	proximityFloor = 0.60
	maxWindowHits  = 3
)

// Extractor finds VIN-shaped substrings in recognized text using a
// prioritized multi-strategy search, then funnels each through
// Correct -> Validate -> Score.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the highest-scoring structurally valid candidate clearing
// the acceptance floor, or ok=false when the text holds no usable VIN.
func (e *Extractor) Extract(text string) (Candidate, bool) {
	upper := strings.ToUpper(text)

	candidates := e.Candidates(upper)
	if best, ok := pickBest(candidates, upper, acceptFloor); ok {
		return best, true
	}

	// Secondary pass: lines adjacent to a label keyword, with a stricter
	// floor since these runs lack the label's immediate context.
	if best, ok := pickBest(e.proximityCandidates(upper), upper, proximityFloor); ok {
		return best, true
	}

	return Candidate{}, false
}

// Candidates returns the de-duplicated raw candidate strings in priority
// order: labeled sequences, standalone 17-char runs, per-line manufacturer-
// shaped runs, then sliding windows over the concatenated text.
func (e *Extractor) Candidates(upper string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		if len(raw) != Length {
			return
		}
		if _, dup := seen[raw]; dup {
			return
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}

	for _, m := range labeledRun.FindAllStringSubmatch(upper, -1) {
		run := nonAlnum.ReplaceAllString(m[1], "")
		if len(run) >= Length {
			add(run[:Length])
		}
	}

	for _, run := range standaloneRun.FindAllString(upper, -1) {
		add(run)
	}

	for _, line := range strings.Split(upper, "\n") {
		run := nonAlnum.ReplaceAllString(line, "")
		if len(run) < Length || len(run) > 20 {
			continue
		}
		if manufacturerShaped(run) {
			add(run[:Length])
		}
	}

	concatenated := nonAlnum.ReplaceAllString(upper, "")
	hits := 0
	for i := 0; i+Length <= len(concatenated) && hits < maxWindowHits; i++ {
		window := concatenated[i : i+Length]
		if !plausibleWindowLead(window) {
			continue
		}
		add(window)
		hits++
	}

	return out
}

// proximityCandidates scans the lines immediately before and after any line
// carrying a label keyword.
func (e *Extractor) proximityCandidates(upper string) []string {
	lines := strings.Split(upper, "\n")
	var out []string
	seen := make(map[string]struct{})

	for i, line := range lines {
		if !labelPattern.MatchString(line) {
			continue
		}
		for _, j := range []int{i - 1, i + 1} {
			if j < 0 || j >= len(lines) {
				continue
			}
			run := nonAlnum.ReplaceAllString(lines[j], "")
			if len(run) < Length {
				continue
			}
			raw := run[:Length]
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			out = append(out, raw)
		}
	}
	return out
}

func pickBest(raws []string, fullText string, floor float64) (Candidate, bool) {
	var best Candidate
	found := false
	for _, raw := range raws {
		corrected := Correct(raw)
		validation := Validate(corrected)
		if !validation.Structural {
			continue
		}
		confidence := Score(raw, corrected, fullText)
		if confidence < floor {
			continue
		}
		if !found || confidence > best.Confidence {
			best = Candidate{
				Raw:               raw,
				VIN:               corrected,
				Confidence:        confidence,
				KnownManufacturer: validation.KnownManufacturer,
			}
			found = true
		}
	}
	return best, found
}

// manufacturerShaped accepts runs opening like a WMI: digit-then-letter or
// two letters.
func manufacturerShaped(run string) bool {
	if len(run) < 2 {
		return false
	}
	first, second := run[0], run[1]
	if first >= '1' && first <= '9' && second >= 'A' && second <= 'Z' {
		return true
	}
	return first >= 'A' && first <= 'Z' && second >= 'A' && second <= 'Z'
}

// plausibleWindowLead mirrors the scoring lead pattern but tolerates the
// pre-correction alphabet.
func plausibleWindowLead(window string) bool {
	return len(window) >= 2 &&
		window[0] >= '1' && window[0] <= '9' &&
		window[1] >= 'A' && window[1] <= 'Z'
}
