package scheduler

import "errors"

// ErrInvalidConfig is returned when the scheduler configuration is invalid
var ErrInvalidConfig = errors.New("invalid scheduler configuration")
