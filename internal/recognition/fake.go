package recognition

import (
	"context"
	"sync"

	"github.com/vinscan/vinscan/internal/shared"
)

// Fake is an in-process recognition backend for tests and wiring without
// sidecars. Responses are scripted per call; once the script runs out the
// last entry repeats.
type Fake struct {
	mu       sync.Mutex
	texts    []TextResult
	barcodes [][]Barcode
	quality  QualityReport
	textErr  error
	codeErr  error
	calls    int
}

func NewFake() *Fake {
	return &Fake{quality: QualityReport{Contrast: 0.9, Brightness: 0.9}}
}

func (f *Fake) WithText(texts ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = nil
	for _, t := range texts {
		f.texts = append(f.texts, TextResult{Text: t})
	}
	return f
}

func (f *Fake) WithBarcodes(values ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	var codes []Barcode
	for _, v := range values {
		codes = append(codes, Barcode{Value: v, Format: "code39"})
	}
	f.barcodes = [][]Barcode{codes}
	return f
}

func (f *Fake) WithQuality(q QualityReport) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quality = q
	return f
}

func (f *Fake) WithTextError(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textErr = err
	return f
}

func (f *Fake) WithBarcodeError(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeErr = err
	return f
}

func (f *Fake) Unavailable() *Fake {
	return f.WithTextError(shared.ErrUnavailable).WithBarcodeError(shared.ErrUnavailable)
}

func (f *Fake) Recognize(ctx context.Context, img Image) (TextResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return TextResult{}, f.textErr
	}
	if len(f.texts) == 0 {
		return TextResult{}, nil
	}
	idx := f.calls
	if idx >= len(f.texts) {
		idx = len(f.texts) - 1
	}
	f.calls++
	return f.texts[idx], nil
}

func (f *Fake) Scan(ctx context.Context, img Image) ([]Barcode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codeErr != nil {
		return nil, f.codeErr
	}
	if len(f.barcodes) == 0 {
		return nil, nil
	}
	return f.barcodes[0], nil
}

func (f *Fake) Analyze(ctx context.Context, img Image) (QualityReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quality, nil
}

// Calls reports how many text recognitions were served.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
