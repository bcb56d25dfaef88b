package keys

import "strings"

// Classify maps a raw credential string to its sensitivity classification.
// Pure function: same input always yields the same KeyType.
//
// Empty input classifies as Secret (the conservative default), named safe
// patterns win over dangerous ones, and anything that matches neither table
// falls back to Restricted rather than a safe type.
func Classify(raw string) KeyType {
	if raw == "" {
		return Secret
	}

	lower := strings.ToLower(raw)

	for _, rule := range safeRules {
		if strings.Contains(lower, rule.Substring) {
			return rule.Type
		}
	}

	for _, rule := range dangerousRules {
		if strings.Contains(lower, rule.Substring) {
			return rule.Type
		}
	}

	return Restricted
}
