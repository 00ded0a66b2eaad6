package vin

import "fmt"

// Adjustment is a single suggested character swap. Suggestions are advisory:
// the VIN itself is never rewritten here, the caller decides whether to
// accept, rescan or fall back to manual entry.
type Adjustment struct {
	Position  int    `json:"position"`
	Original  string `json:"original"`
	Suggested string `json:"suggested"`
	Reason    string `json:"reason"`
}

// Review annotates a structurally valid VIN with ambiguity findings.
type Review struct {
	VIN                string       `json:"vin"`
	Suggestions        []Adjustment `json:"suggestions,omitempty"`
	AdjustedConfidence float64      `json:"adjusted_confidence"`
	NeedsUserReview    bool         `json:"needs_user_review"`
}

const (
	// Each triggered ambiguity rule costs ten percentage points.
	rulePenalty = 0.10

	adjusterSuggestBelow = 0.70
	adjusterReviewBelow  = 0.65
)

type ambiguityRule struct {
	wmiPrefix string
	positions []int
	from      byte
	to        byte
	reason    string
}

// Adjuster detects manufacturer- and position-specific OCR confusions.
type Adjuster struct {
	rules []ambiguityRule
}

func NewAdjuster() *Adjuster {
	return &Adjuster{
		rules: []ambiguityRule{
			// Stamped Honda plates routinely read 1 for 0 (and back) in
			// the descriptor section, positions 6 and 8.
			{wmiPrefix: "1HG", positions: []int{5, 7}, from: '1', to: '0', reason: "digit 1 frequently misread as 0 on this plate style"},
			{wmiPrefix: "1HG", positions: []int{5, 7}, from: '0', to: '1', reason: "digit 0 frequently misread as 1 on this plate style"},
		},
	}
}

// Analyze inspects a structurally valid VIN. Confidence is on the [0,1]
// scale; suggestions are only produced below the suggestion threshold so a
// confident read is never second-guessed.
func (a *Adjuster) Analyze(vinStr string, confidence float64) Review {
	review := Review{VIN: vinStr, AdjustedConfidence: confidence}
	if len(vinStr) != Length || confidence >= adjusterSuggestBelow {
		return review
	}

	for _, rule := range a.rules {
		if vinStr[:len(rule.wmiPrefix)] != rule.wmiPrefix {
			continue
		}
		triggered := false
		for _, pos := range rule.positions {
			if vinStr[pos] != rule.from {
				continue
			}
			triggered = true
			review.Suggestions = append(review.Suggestions, Adjustment{
				Position:  pos,
				Original:  string(rule.from),
				Suggested: string(rule.to),
				Reason:    fmt.Sprintf("%s (position %d)", rule.reason, pos+1),
			})
		}
		if triggered {
			review.AdjustedConfidence -= rulePenalty
		}
	}

	if review.AdjustedConfidence < 0 {
		review.AdjustedConfidence = 0
	}
	review.NeedsUserReview = confidence < adjusterReviewBelow && len(review.Suggestions) > 0
	return review
}
