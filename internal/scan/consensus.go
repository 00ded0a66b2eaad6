package scan

import (
	"time"

	"github.com/vinscan/vinscan/internal/vin"
)

// Consensus weighting. Tuned constants, not derived.
const (
	consensusWindow       = 5
	consensusMinFrames    = 2
	consensusFusedWeight  = 0.5
	consensusFreqWeight   = 0.3
	consensusRecentWeight = 0.2

	recencyHorizon = 30 * time.Second
	temporalDecay  = 0.9

	// The two positions the 1<->0 confusion historically hits hardest get
	// their per-position confidence boosted during fusion.
	ambiguousBoost = 1.15

	stableFloor        = 0.8
	maxDistinctForCalm = 2
)

var ambiguousPositions = map[int]bool{5: true, 7: true}

// ConsensusResult is the stabilized multi-frame answer.
type ConsensusResult struct {
	VIN        string  `json:"vin"`
	Confidence float64 `json:"confidence"`
	Stability  float64 `json:"stability"`
	Frames     int     `json:"frames"`
	Window     int     `json:"window"`
}

// Consensus reduces a frame window to a stabilized VIN. It needs at least
// two frames in the analyzed window (the most recent five), and only
// declares a winner backed by two or more frames.
func Consensus(frames []Frame, now time.Time) (ConsensusResult, bool) {
	if len(frames) > consensusWindow {
		frames = frames[len(frames)-consensusWindow:]
	}
	window := len(frames)
	if window < consensusMinFrames {
		return ConsensusResult{}, false
	}

	// Rank 1 is the newest frame in the window; decay is per rank.
	decayByIndex := make([]float64, window)
	decay := 1.0
	for i := window - 1; i >= 0; i-- {
		decayByIndex[i] = decay
		decay *= temporalDecay
	}

	groups := make(map[string][]int)
	for i, f := range frames {
		groups[f.VIN] = append(groups[f.VIN], i)
	}

	var best ConsensusResult
	var bestIdxs []int
	bestScore := -1.0
	for vinStr, idxs := range groups {
		fused := fusedConfidence(frames, idxs, decayByIndex)
		frequency := float64(len(idxs)) / float64(window)
		recency := meanRecency(frames, idxs, now)

		score := consensusFusedWeight*fused +
			consensusFreqWeight*frequency +
			consensusRecentWeight*recency

		// Map iteration order is random, so exact score ties need a
		// deterministic break: larger group, then newest frame. Index
		// sets are disjoint, so the newest index settles every tie.
		if score < bestScore {
			continue
		}
		if score == bestScore && !beatsOnTie(idxs, bestIdxs) {
			continue
		}
		bestScore = score
		bestIdxs = idxs
		best = ConsensusResult{
			VIN:        vinStr,
			Confidence: fused,
			Stability:  frequency,
			Frames:     len(idxs),
			Window:     window,
		}
	}

	if best.Frames < consensusMinFrames {
		return ConsensusResult{}, false
	}
	return best, true
}

// beatsOnTie reports whether a group with the same score as the current
// best should replace it. Group indexes follow frame order, so the last
// index is the group's newest frame.
func beatsOnTie(idxs, bestIdxs []int) bool {
	if len(idxs) != len(bestIdxs) {
		return len(idxs) > len(bestIdxs)
	}
	return idxs[len(idxs)-1] > bestIdxs[len(bestIdxs)-1]
}

// fusedConfidence averages per-position, decay-weighted confidence across
// the group's frames, boosting the historically ambiguous positions.
func fusedConfidence(frames []Frame, idxs []int, decayByIndex []float64) float64 {
	var total float64
	for pos := 0; pos < vin.Length; pos++ {
		var sum float64
		for _, i := range idxs {
			sum += frames[i].Confidence * decayByIndex[i]
		}
		posScore := sum / float64(len(idxs))
		if ambiguousPositions[pos] {
			posScore *= ambiguousBoost
		}
		if posScore > 1 {
			posScore = 1
		}
		total += posScore
	}
	fused := total / vin.Length
	if fused > vin.ScoreCeiling {
		fused = vin.ScoreCeiling
	}
	return fused
}

func meanRecency(frames []Frame, idxs []int, now time.Time) float64 {
	var sum float64
	for _, i := range idxs {
		age := now.Sub(frames[i].Timestamp)
		r := 1 - float64(age)/float64(recencyHorizon)
		if r < 0 {
			r = 0
		}
		sum += r
	}
	return sum / float64(len(idxs))
}

// PositionConflict reports a VIN position that disagrees across frames.
type PositionConflict struct {
	Position int            `json:"position"`
	Counts   map[string]int `json:"counts"`
	ZeroOne  bool           `json:"zero_one_confusion"`
}

// InconsistentPositions flags positions holding more than one character
// value across the window when the window looks unstable: low stability or
// too many distinct VIN strings. The 0-versus-1 confusion is called out
// separately since it dominates field reports.
func InconsistentPositions(frames []Frame, stability float64) []PositionConflict {
	if len(frames) > consensusWindow {
		frames = frames[len(frames)-consensusWindow:]
	}
	if len(frames) < consensusMinFrames {
		return nil
	}

	distinct := make(map[string]struct{})
	for _, f := range frames {
		distinct[f.VIN] = struct{}{}
	}
	if stability >= stableFloor && len(distinct) <= maxDistinctForCalm {
		return nil
	}

	var conflicts []PositionConflict
	for pos := 0; pos < vin.Length; pos++ {
		counts := make(map[string]int)
		for _, f := range frames {
			if pos < len(f.VIN) {
				counts[string(f.VIN[pos])]++
			}
		}
		if len(counts) < 2 {
			continue
		}
		_, hasZero := counts["0"]
		_, hasOne := counts["1"]
		conflicts = append(conflicts, PositionConflict{
			Position: pos,
			Counts:   counts,
			ZeroOne:  hasZero && hasOne,
		})
	}
	return conflicts
}
