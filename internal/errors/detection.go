package errors

import "errors"

// Peak detection failures. They are confined to the well that raised them.
var (
	ErrTooFewPeaks      = errors.New("too few peaks detected")
	ErrTwoPeaksInARow   = errors.New("two contractions detected in a row")
	ErrTwoValleysInARow = errors.New("two relaxations detected in a row")
)

// NotAvailable marks report cells that have no value for a well
const NotAvailable = "N/A"

var detectionDescriptions = map[error]string{
	ErrTooFewPeaks:      "Error: Not Enough Twitches Detected",
	ErrTwoPeaksInARow:   "Error: Two Contractions in a Row Detected",
	ErrTwoValleysInARow: "Error: Two Relaxations in a Row Detected",
}

// NewDetectionError wraps a detection sentinel with well context
func NewDetectionError(sentinel error, wellName string) *AppError {
	return NewAppError(ErrTypeDetection, "peak detection failed", sentinel).WithContext("well", wellName)
}

// IsDetectionError reports whether err is a per-well detection failure
func IsDetectionError(err error) bool {
	_, ok := DetectionDescription(err)
	return ok
}

// DetectionDescription returns the in-sheet text for a detection failure
func DetectionDescription(err error) (string, bool) {
	for sentinel, desc := range detectionDescriptions {
		if errors.Is(err, sentinel) {
			return desc, true
		}
	}
	return "", false
}
