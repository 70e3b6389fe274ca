package pkg

import "errors"

var (
	// Verification errors 🔍
	ErrVerificationFailed = errors.New("❌ container verification failed")
	ErrRoundTripMismatch  = errors.New("❌ rewritten container differs from source")
)
