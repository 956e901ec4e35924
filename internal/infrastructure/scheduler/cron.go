package scheduler

import (
	"fmt"
	"strconv"
	"strings"
)

// Default daily fire time (UTC)
const (
	DefaultCronHour   = 1
	DefaultCronMinute = 0
)

// ParseCronSchedule parses a daily cron expression "minute hour * * *".
// An empty expression yields the 01:00 default. Only fixed minute and hour
// fields are supported; the remaining fields must be "*".
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	parts := strings.Fields(cronExpr)
	if len(parts) == 0 {
		return DefaultCronHour, DefaultCronMinute, nil
	}
	if len(parts) != 5 {
		return 0, 0, fmt.Errorf("%w: expected 5 fields in %q", ErrInvalidConfig, cronExpr)
	}
	for _, p := range parts[2:] {
		if p != "*" {
			return 0, 0, fmt.Errorf("%w: only daily schedules are supported, got %q", ErrInvalidConfig, cronExpr)
		}
	}

	minute, err = strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute must be 0-59, got %q", ErrInvalidConfig, parts[0])
	}
	hour, err = strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour must be 0-23, got %q", ErrInvalidConfig, parts[1])
	}
	return hour, minute, nil
}
