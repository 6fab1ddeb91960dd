package emqx

import (
	"fmt"
	"strings"
)

// ValidateTopicFilter checks MQTT wildcard placement in a topic filter:
// '+' must occupy an entire path segment, '#' is only allowed as the final
// segment. Returns ErrInvalidTopicPattern on violation.
func ValidateTopicFilter(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidTopicPattern)
	}

	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if strings.Contains(seg, "#") {
			if seg != "#" || i != len(segments)-1 {
				return fmt.Errorf("%w: '#' must be the final segment in %q", ErrInvalidTopicPattern, pattern)
			}
			continue
		}
		if strings.Contains(seg, "+") && seg != "+" {
			return fmt.Errorf("%w: '+' must occupy a whole segment in %q", ErrInvalidTopicPattern, pattern)
		}
	}
	return nil
}

// ExpandPattern substitutes the {device_id} placeholder of a topic registry
// template with a concrete device identifier.
func ExpandPattern(template, deviceID string) string {
	return strings.ReplaceAll(template, "{device_id}", deviceID)
}
