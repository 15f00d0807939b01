package usage

import (
	"errors"
	"fmt"
)

var (
	// ErrLimitReached indicates the account has no downloads left or its plan lapsed.
	ErrLimitReached = errors.New("limit reached")
	// ErrPlanExpired wraps ErrLimitReached for lapsed dated plans.
	ErrPlanExpired  = fmt.Errorf("%w: plan expired", ErrLimitReached)
	ErrInvalidGrant = errors.New("invalid grant")
)
