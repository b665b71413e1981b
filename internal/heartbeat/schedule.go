package heartbeat

import "time"

var DefaultRetrySchedule = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// NextDelay returns the wait before the next beat after `retries`
// consecutive Retry results. retries is 1-indexed; once the schedule is
// exhausted the regular interval applies again.
func NextDelay(retries int, schedule []time.Duration, interval time.Duration) time.Duration {
	idx := retries - 1
	if idx < 0 || idx >= len(schedule) {
		return interval
	}
	return schedule[idx]
}

func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
