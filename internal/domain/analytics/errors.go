package analytics

import (
	"fmt"

	"github.com/erp/analytics/internal/domain/shared"
)

// Error codes
const (
	CodeInvalidDateRange     = "INVALID_DATE_RANGE"
	CodeInvalidPreset        = "INVALID_PRESET"
	CodeInvalidTriggerParams = "INVALID_TRIGGER_PARAMS"
	CodeInvalidWarehouseID   = "INVALID_WAREHOUSE_ID"
	CodeSourceUnavailable    = "SOURCE_UNAVAILABLE"
	CodePartialWrite         = "PARTIAL_WRITE"
)

// Validation errors, returned before any store is touched
var (
	ErrInvalidDateRange     = shared.NewDomainError(CodeInvalidDateRange, "from must be on or before to")
	ErrInvalidPreset        = shared.NewDomainError(CodeInvalidPreset, "preset must be one of 7, 30 or 365")
	ErrInvalidTriggerParams = shared.NewDomainError(CodeInvalidTriggerParams, "from and to must be provided together or not at all")
	ErrInvalidWarehouseID   = shared.NewDomainError(CodeInvalidWarehouseID, "warehouseId must be a UUID")
)

// Store failures
var (
	ErrSourceUnavailable = shared.NewDomainError(CodeSourceUnavailable, "analytics data source unavailable")
	ErrPartialWrite      = shared.NewDomainError(CodePartialWrite, "aggregates were only partially written")
)

// NewSourceUnavailableError wraps a transactional or aggregate store failure.
// The result matches ErrSourceUnavailable under errors.Is.
func NewSourceUnavailableError(store string, cause error) error {
	return shared.NewDomainErrorWithCause(CodeSourceUnavailable, store+" unavailable", cause)
}

// PartialWriteError reports a bulk upsert where some days failed.
// Written days are not rolled back; rerunning the same range is safe.
type PartialWriteError struct {
	Written int
	Failed  int
	Cause   error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial aggregate write: %d written, %d failed: %v", e.Written, e.Failed, e.Cause)
}

// Unwrap exposes the PARTIAL_WRITE domain error so handlers and errors.Is see it
func (e *PartialWriteError) Unwrap() error {
	return shared.NewDomainErrorWithCause(CodePartialWrite,
		fmt.Sprintf("aggregates partially written (%d written, %d failed), retry the same range", e.Written, e.Failed),
		e.Cause)
}
