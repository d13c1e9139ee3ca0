package rules

import "strings"

// Match reports whether kind matches an already lower-cased command.
// Patterns are lower-cased here; nothing else is normalized.
//
// This is a plain substring test, so "password_manager" matches a rule on
// "password". Callers that need token boundaries must not use this package.
func Match(kind Kind, lowerCommand string) bool {
	switch k := kind.(type) {
	case Substring:
		return contains(lowerCommand, k.Pattern)
	case ContainsAll:
		for _, p := range k.All {
			if !contains(lowerCommand, p) {
				return false
			}
		}
		return len(k.All) > 0
	case ContainsAny:
		for _, p := range k.Any {
			if contains(lowerCommand, p) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func contains(lowerCommand, pattern string) bool {
	return strings.Contains(lowerCommand, strings.ToLower(pattern))
}
