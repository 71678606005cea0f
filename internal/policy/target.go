package policy

import "strings"

// Matches implements the recognized glob forms: a literal target, the
// wildcard "*" (and its alias "all"), a prefix glob "prefix-*", and a
// suffix glob "*-suffix". Matching is case-sensitive and requires a
// non-empty target.
func Matches(pattern, target string) bool {
	if target == "" {
		return false
	}
	if pattern == "*" || pattern == "all" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(target, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(target, strings.TrimPrefix(pattern, "*"))
	}
	return pattern == target
}
