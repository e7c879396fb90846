// Package sql screens free-text request input for SQL injection patterns.
// Queries are always parameterized; screening only feeds the security audit log.
package sql

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a parameter value.
type InjectionCheckResult struct {
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string
	ParamValue  string
}

// CheckParameterForInjection uses libinjection to detect SQL injection patterns
// in a parameter value. Returns nil when the value is clean.
//
// Example:
//
//	result := CheckParameterForInjection("search", "'; DROP TABLE cases--")
//	// result.Fingerprint == "s&1c" (or similar)
func CheckParameterForInjection(paramName, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Fingerprint: string(fingerprint),
		ParamName:   paramName,
		ParamValue:  value,
	}
}

// CheckAllParameters checks every value and returns the findings ordered by parameter name.
func CheckAllParameters(params map[string]string) []*InjectionCheckResult {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []*InjectionCheckResult
	for _, name := range names {
		if result := CheckParameterForInjection(name, params[name]); result != nil {
			results = append(results, result)
		}
	}
	return results
}
