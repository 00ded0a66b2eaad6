package scan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vinscan/vinscan/internal/recognition"
	"github.com/vinscan/vinscan/internal/shared"
	"github.com/vinscan/vinscan/internal/vin"
)

// raceResult is the winning read for one frame, before session-level bonuses.
type raceResult struct {
	vin               string
	raw               string
	confidence        float64
	source            Source
	knownManufacturer bool
	processingTime    time.Duration
}

// RaceCoordinator runs the text and barcode recognition paths concurrently
// for a single frame and selects a winner. Each path's failure is isolated:
// a panic or error on one side never cancels or corrupts the other.
type RaceCoordinator struct {
	text      recognition.TextRecognizer
	barcode   recognition.BarcodeScanner
	extractor *vin.Extractor
	log       *slog.Logger
}

func NewRaceCoordinator(text recognition.TextRecognizer, barcode recognition.BarcodeScanner, log *slog.Logger) *RaceCoordinator {
	if log == nil {
		log = slog.Default()
	}
	return &RaceCoordinator{
		text:      text,
		barcode:   barcode,
		extractor: vin.NewExtractor(),
		log:       log.With("component", "race-coordinator"),
	}
}

// raceInfo reports what happened to each path, so the session can tell
// "nothing recognized" apart from "recognition engines not loaded" and
// "something VIN-shaped was read but failed the structural checks".
type raceInfo struct {
	textUnavailable    bool
	barcodeUnavailable bool
	structuralReject   bool
}

func (i raceInfo) allUnavailable() bool {
	return i.textUnavailable && i.barcodeUnavailable
}

// pathOutcome is one recognition path's verdict for a frame.
type pathOutcome struct {
	ok          bool
	unavailable bool
	rejected    bool
}

// Run races both paths and returns the higher-confidence valid result.
// Ties favor barcode; barcode reads rarely tie with OCR in practice.
func (r *RaceCoordinator) Run(ctx context.Context, img recognition.Image) (raceResult, raceInfo, bool) {
	var wg sync.WaitGroup
	var textRes, barcodeRes raceResult
	var textOut, barcodeOut pathOutcome

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer r.recoverPath("text")
		textRes, textOut = r.runText(ctx, img)
	}()
	go func() {
		defer wg.Done()
		defer r.recoverPath("barcode")
		barcodeRes, barcodeOut = r.runBarcode(ctx, img)
	}()
	wg.Wait()

	info := raceInfo{
		textUnavailable:    textOut.unavailable,
		barcodeUnavailable: barcodeOut.unavailable,
		structuralReject:   textOut.rejected || barcodeOut.rejected,
	}

	switch {
	case textOut.ok && barcodeOut.ok:
		if textRes.confidence > barcodeRes.confidence {
			return textRes, info, true
		}
		return barcodeRes, info, true
	case textOut.ok:
		return textRes, info, true
	case barcodeOut.ok:
		return barcodeRes, info, true
	default:
		return raceResult{}, info, false
	}
}

func (r *RaceCoordinator) runText(ctx context.Context, img recognition.Image) (raceResult, pathOutcome) {
	if r.text == nil {
		return raceResult{}, pathOutcome{unavailable: true}
	}
	start := time.Now()
	res, err := r.text.Recognize(ctx, img)
	if err != nil {
		r.log.Debug("text recognition yielded nothing", "error", err)
		return raceResult{}, pathOutcome{unavailable: errors.Is(err, shared.ErrUnavailable)}
	}
	candidate, ok := r.extractor.Extract(res.Text)
	if !ok {
		return raceResult{}, pathOutcome{rejected: r.sawStructuralReject(res.Text)}
	}
	return raceResult{
		vin:               candidate.VIN,
		raw:               candidate.Raw,
		confidence:        candidate.Confidence,
		source:            SourceText,
		knownManufacturer: candidate.KnownManufacturer,
		processingTime:    time.Since(start),
	}, pathOutcome{ok: true}
}

// sawStructuralReject reports whether the text held at least one VIN-shaped
// run that failed the structural checks after correction. This is what lets
// the session report structural_reject instead of no_candidate.
func (r *RaceCoordinator) sawStructuralReject(text string) bool {
	for _, raw := range r.extractor.Candidates(strings.ToUpper(text)) {
		if !vin.Validate(vin.Correct(raw)).Structural {
			return true
		}
	}
	return false
}

// runBarcode validates and corrects decoded values the same way text
// candidates are handled; scanners misread stamped labels too.
func (r *RaceCoordinator) runBarcode(ctx context.Context, img recognition.Image) (raceResult, pathOutcome) {
	if r.barcode == nil {
		return raceResult{}, pathOutcome{unavailable: true}
	}
	start := time.Now()
	codes, err := r.barcode.Scan(ctx, img)
	if err != nil {
		r.log.Debug("barcode scan yielded nothing", "error", err)
		return raceResult{}, pathOutcome{unavailable: errors.Is(err, shared.ErrUnavailable)}
	}

	var best raceResult
	found := false
	rejected := false
	for _, code := range codes {
		raw := strings.TrimSpace(code.Value)
		corrected := vin.Correct(raw)
		validation := vin.Validate(corrected)
		if !validation.Structural {
			rejected = true
			continue
		}
		confidence := vin.Score(raw, corrected, raw)
		if !found || confidence > best.confidence {
			best = raceResult{
				vin:               corrected,
				raw:               raw,
				confidence:        confidence,
				source:            SourceBarcode,
				knownManufacturer: validation.KnownManufacturer,
			}
			found = true
		}
	}
	if !found {
		return raceResult{}, pathOutcome{rejected: rejected}
	}
	best.processingTime = time.Since(start)
	return best, pathOutcome{ok: true}
}

func (r *RaceCoordinator) recoverPath(path string) {
	if rec := recover(); rec != nil {
		r.log.Error("recognition path panicked", "path", path, "panic", rec)
	}
}
