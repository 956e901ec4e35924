package analytics

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Cache key namespaces
const (
	KeyPrefix         = "analytics:"
	OverviewKeyPrefix = KeyPrefix + "overview:"
	TrendKeyPrefix    = KeyPrefix + "trend:"
	TopKeyPrefix      = KeyPrefix + "top:"
	PresetKeyPrefix   = KeyPrefix + "preset:"
)

const keyDateLayout = "20060102"

// StaleOnRebuildPrefixes are the date-range sensitive namespaces purged after
// every aggregation run.
var StaleOnRebuildPrefixes = []string{OverviewKeyPrefix, TrendKeyPrefix, TopKeyPrefix}

func scopeSegment(warehouseID *uuid.UUID) string {
	if warehouseID == nil {
		return "all"
	}
	return "wh-" + warehouseID.String()
}

func rangeSegment(r DateRange) string {
	return r.From.Format(keyDateLayout) + ":" + r.To.Format(keyDateLayout)
}

// OverviewKey is analytics:overview:{from}:{to}:{scope}
func OverviewKey(r DateRange, warehouseID *uuid.UUID) string {
	return OverviewKeyPrefix + rangeSegment(r) + ":" + scopeSegment(warehouseID)
}

// TrendKey is analytics:trend:{from}:{to}:{scope}
func TrendKey(r DateRange, warehouseID *uuid.UUID) string {
	return TrendKeyPrefix + rangeSegment(r) + ":" + scopeSegment(warehouseID)
}

// TopProductsKey is analytics:top:{from}:{to}:{scope}:take-{n}
func TopProductsKey(r DateRange, warehouseID *uuid.UUID, take int) string {
	return TopKeyPrefix + rangeSegment(r) + ":" + scopeSegment(warehouseID) + ":take-" + strconv.Itoa(take)
}

// PresetKey is analytics:preset:{days}d
func PresetKey(days int) string {
	return fmt.Sprintf("%s%dd", PresetKeyPrefix, days)
}
