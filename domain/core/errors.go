package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Design errors: the requested population model cannot be realized
	ErrInvalidDesign     = errors.New("invalid design")
	ErrSampleTooSmall    = fmt.Errorf("%w: sample size below cell count", ErrInvalidDesign)
	ErrSigmaNotPSD       = fmt.Errorf("%w: covariance matrix not positive semi-definite", ErrInvalidDesign)
	ErrCellCountMismatch = fmt.Errorf("%w: cell count mismatch", ErrInvalidDesign)

	// Parameter errors: caller options outside the accepted domain
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrAlphaOutOfRange   = fmt.Errorf("%w: alpha outside (0,1)", ErrInvalidParameter)
	ErrUnknownCorrection = fmt.Errorf("%w: unknown sphericity correction", ErrInvalidParameter)
	ErrUnknownEMMModel   = fmt.Errorf("%w: unknown marginal-means model", ErrInvalidParameter)

	// Contrast errors
	ErrUnsupportedContrast = errors.New("unsupported contrast family")

	// Fitting errors
	ErrSingularModel    = errors.New("model matrix is singular")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Storage errors
	ErrAnalysisNotFound = errors.New("analysis not found")
)

// Error constructors with context
func NewDesignError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidDesign, reason)
}

func NewParameterError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidParameter, field, reason)
}

func NewContrastError(family string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedContrast, family)
}

// Error checking helpers
func IsDesignError(err error) bool {
	return errors.Is(err, ErrInvalidDesign)
}

func IsParameterError(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

func IsContrastError(err error) bool {
	return errors.Is(err, ErrUnsupportedContrast)
}
