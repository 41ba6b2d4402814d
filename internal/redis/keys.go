package redisx

import "fmt"

const ns = "busline:v1"

func KeyCities(prefix string) string {
	if prefix == "" {
		return ns + ":cities:all"
	}
	return fmt.Sprintf("%s:cities:prefix:%s", ns, prefix)
}

func KeyRecordAvailability(recordID int64) string {
	return fmt.Sprintf("%s:record:%d:availability", ns, recordID)
}

// KeyRateLimit is the limiter key prefix for a scope; the limiter appends
// the per-caller suffix.
func KeyRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func ChannelRecordsChanged() string {
	return ns + ":records:changed"
}
