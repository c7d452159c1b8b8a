package resolver

import "strings"

// IsSentinel reports whether a resolve_value placeholder should pass
// through unresolved rather than being looked up: the literal "OTP"
// (handled later by the navigation loop's OTP-apply stage) or any value
// containing "**" (a redacted user confirmation already filled in once
// by a human and not meant to be substituted again).
func IsSentinel(value string) bool {
	return value == "OTP" || strings.Contains(value, "**")
}
