package scan

import (
	"context"
	"testing"
	"time"

	"github.com/vinscan/vinscan/internal/recognition"
)

func newController(fake *recognition.Fake) *AttemptController {
	return NewAttemptController(NewRaceCoordinator(fake, fake, nil), fake, nil)
}

func TestAttemptBudget(t *testing.T) {
	cases := []struct {
		name      string
		overall   float64
		hasIssues bool
		want      int
	}{
		{"high quality", 0.9, false, 1},
		{"high quality with glare", 0.9, true, 1},
		{"good quality", 0.65, false, 1},
		{"fair quality", 0.45, false, 2},
		{"poor quality", 0.1, false, 1},
		{"boundary good", 0.6, false, 1},
		{"boundary fair", 0.3, false, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := attemptBudget(tc.overall, tc.hasIssues); got != tc.want {
				t.Errorf("attemptBudget(%v, %v) = %d, want %d", tc.overall, tc.hasIssues, got, tc.want)
			}
		})
	}
}

func TestShouldExitEarly(t *testing.T) {
	cases := []struct {
		name    string
		res     raceResult
		overall float64
		want    bool
	}{
		{"strong barcode", raceResult{source: SourceBarcode, confidence: 0.91}, 0.2, true},
		{"strong text", raceResult{source: SourceText, confidence: 0.85}, 0.2, true},
		{"decent text on good frame", raceResult{source: SourceText, confidence: 0.76}, 0.65, true},
		{"decent text on poor frame", raceResult{source: SourceText, confidence: 0.76}, 0.4, false},
		{"weak result", raceResult{source: SourceBarcode, confidence: 0.6}, 0.9, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := shouldExitEarly(tc.res, tc.overall); got != tc.want {
				t.Errorf("shouldExitEarly = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAttemptRetriesOnFairQuality(t *testing.T) {
	fake := recognition.NewFake().
		WithText("nothing readable", "VIN: 1HGCM82633A004352").
		WithQuality(recognition.QualityReport{Contrast: 0.45, Brightness: 0.45})
	ctrl := newController(fake)

	res := ctrl.Run(context.Background(), recognition.Image{})
	if !res.found {
		t.Fatal("expected the second attempt to succeed")
	}
	if res.attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.attempts)
	}
	if res.result.vin != "1HGCM82633A004352" {
		t.Errorf("vin = %q", res.result.vin)
	}
}

func TestAttemptStopsEarlyOnStrongResult(t *testing.T) {
	fake := recognition.NewFake().
		WithText("VIN: 1HGCM82633A004352").
		WithQuality(recognition.QualityReport{Contrast: 0.45, Brightness: 0.45})
	ctrl := newController(fake)

	res := ctrl.Run(context.Background(), recognition.Image{})
	if !res.found {
		t.Fatal("expected a result")
	}
	if res.attempts != 1 {
		t.Errorf("attempts = %d, want early exit after 1", res.attempts)
	}
}

func TestAttemptConfidenceNeverExceedsCeiling(t *testing.T) {
	fake := recognition.NewFake().
		WithText("VIN: 1HGCM82633A004352").
		WithQuality(recognition.QualityReport{Contrast: 1, Brightness: 1})
	ctrl := newController(fake)

	res := ctrl.Run(context.Background(), recognition.Image{})
	if !res.found {
		t.Fatal("expected a result")
	}
	if res.result.confidence > 0.98 {
		t.Errorf("confidence = %v, want <= 0.98 after bonuses", res.result.confidence)
	}
}

func TestAttemptReportsUnavailability(t *testing.T) {
	fake := recognition.NewFake().Unavailable()
	ctrl := newController(fake)

	res := ctrl.Run(context.Background(), recognition.Image{})
	if res.found {
		t.Fatal("no result expected")
	}
	if !res.unavailable {
		t.Error("expected the unavailable flag")
	}
}

func TestAttemptHonorsSessionDeadline(t *testing.T) {
	fake := recognition.NewFake().WithText("nothing readable")
	ctrl := newController(fake)
	ctrl.timeout = -time.Millisecond

	res := ctrl.Run(context.Background(), recognition.Image{})
	if !res.timedOut {
		t.Error("an expired deadline must mark the session timed out")
	}
	if res.found {
		t.Error("no result expected")
	}
}

func TestAttemptFallsBackWhenQualityUnavailable(t *testing.T) {
	fake := recognition.NewFake().WithText("VIN: 1HGCM82633A004352")
	ctrl := NewAttemptController(NewRaceCoordinator(fake, nil, nil), failingQuality{}, nil)

	res := ctrl.Run(context.Background(), recognition.Image{})
	if !res.found {
		t.Fatal("a dead quality analyzer must not block scanning")
	}
	if res.overall != 0.5 {
		t.Errorf("fallback overall = %v, want 0.5", res.overall)
	}
}

type failingQuality struct{}

func (failingQuality) Analyze(ctx context.Context, img recognition.Image) (recognition.QualityReport, error) {
	return recognition.QualityReport{}, context.DeadlineExceeded
}
