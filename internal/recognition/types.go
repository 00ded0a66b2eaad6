package recognition

import "time"

// Image is an opaque handle to one captured camera frame. The capture layer
// owns pixel data; this core only forwards the handle to the recognition
// sidecars.
type Image struct {
	ID     string
	Data   []byte
	MIME   string
	URL    string
	Width  int
	Height int
}

func (img Image) Empty() bool {
	return len(img.Data) == 0 && img.URL == ""
}

// TextResult is one frame's worth of recognized text.
type TextResult struct {
	Text     string
	Duration time.Duration
}

// Barcode is a single decoded symbol.
type Barcode struct {
	Value  string `json:"value"`
	Format string `json:"format"`
}

// QualityReport describes a frame as judged by the quality sidecar. The scan
// engine treats it as authoritative input, never something it computes.
type QualityReport struct {
	Contrast   float64 `json:"contrast"`
	Brightness float64 `json:"brightness"`
	IsBlurry   bool    `json:"is_blurry"`
	HasGlare   bool    `json:"has_glare"`
}

// Overall folds contrast and brightness into the single quality estimate the
// attempt controller budgets on. Weights are tuned, not derived.
func (q QualityReport) Overall() float64 {
	return 0.7*q.Contrast + 0.3*q.Brightness
}

func (q QualityReport) HasIssues() bool {
	return q.IsBlurry || q.HasGlare
}
