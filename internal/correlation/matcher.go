package correlation

import (
	"regexp"

	"github.com/netalarm/internal/models"
)

// matchConditions reports whether the alarm satisfies every entry of the
// match map. Entries are AND'ed; there is no OR/NOT logic. An alarm with
// a missing or empty value for any referenced field never matches.
func matchConditions(alarm *models.Alarm, conds models.FieldMatchMap) bool {
	for field, pattern := range conds {
		value, ok := alarm.MatchValue(field)
		if !ok {
			return false
		}
		if !matchPattern(value, pattern) {
			return false
		}
	}
	return true
}

// matchPattern tests a condition pattern against a field value. Patterns
// are treated as regular expressions anchored at the start of the value
// (prefix match, not full match). A pattern that does not compile is
// compared literally, which also covers condition values coerced from
// non-string rule literals.
func matchPattern(value, pattern string) bool {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return value == pattern
	}
	return re.MatchString(value)
}
