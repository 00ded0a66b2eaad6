package recognition

import "context"

// TextRecognizer is the on-device OCR collaborator. An unavailable engine
// returns shared.ErrUnavailable, which callers treat as "no result", never
// as a fatal error.
type TextRecognizer interface {
	Recognize(ctx context.Context, img Image) (TextResult, error)
}

// BarcodeScanner is the barcode collaborator. Same unavailability contract.
type BarcodeScanner interface {
	Scan(ctx context.Context, img Image) ([]Barcode, error)
}

// QualityAnalyzer judges a frame before the attempt loop budgets on it.
type QualityAnalyzer interface {
	Analyze(ctx context.Context, img Image) (QualityReport, error)
}
