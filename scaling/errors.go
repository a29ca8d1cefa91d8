// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scaling

import "errors"

// Error taxonomy shared by every layer. Wrap with fmt.Errorf("%w: ...")
// and classify with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrInsufficientData = errors.New("insufficient data")
	ErrModelFitFailed   = errors.New("model fit failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)
