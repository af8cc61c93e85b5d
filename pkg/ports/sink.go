package ports

import (
	"image"
)

// DebugSink receives intermediate pipeline artefacts for inspection.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveFormState saves the converged form values as JSON.
	SaveFormState(data []byte) error

	// SaveMarkup saves the normalized capture document.
	SaveMarkup(html []byte) error

	// SaveCapture saves the raw rasterized bitmap.
	SaveCapture(img image.Image) error

	// SaveClassification saves a classifier batch result as JSON.
	SaveClassification(data []byte) error
}
