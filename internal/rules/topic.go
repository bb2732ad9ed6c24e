// Package rules implements the rule matching and extraction engine: MQTT
// topic filters, compiled pattern rules, backreference templates and the
// extraction of metric samples from topic/payload pairs.
package rules

import (
	"fmt"
	"strings"
)

// ValidateFilter checks that filter is a legal MQTT topic filter:
// non-empty, '+' only as a whole level, '#' only as the final level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("topic filter is empty")
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return fmt.Errorf("topic filter %q: '#' must be the last level", filter)
			}
		case strings.Contains(level, "#"):
			return fmt.Errorf("topic filter %q: '#' must occupy a whole level", filter)
		case level != "+" && strings.Contains(level, "+"):
			return fmt.Errorf("topic filter %q: '+' must occupy a whole level", filter)
		}
	}
	return nil
}

// MatchFilter reports whether topic matches filter under MQTT wildcard
// semantics: '+' matches exactly one level, '#' matches the remainder
// including zero levels (filter "a/#" matches topic "a").
func MatchFilter(filter, topic string) bool {
	fLevels := strings.Split(filter, "/")
	tLevels := strings.Split(topic, "/")

	for i, f := range fLevels {
		if f == "#" {
			// '#' covers the remainder including zero levels, so
			// "a/#" matches topic "a".
			return true
		}
		if i >= len(tLevels) {
			return false
		}
		if f != "+" && f != tLevels[i] {
			return false
		}
	}
	return len(fLevels) == len(tLevels)
}
