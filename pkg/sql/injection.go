package sql

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a parameter value that tripped the
// injection screen.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamIndex  int    // Position of the parameter that failed the check
	ParamValue  any    // The value that was checked
}

// CheckParameterForInjection uses libinjection to detect SQL injection
// patterns in a parameter value.
//
// Only string values are checked - numbers, booleans, and other types
// cannot contain SQL injection patterns and return nil.
//
// Example:
//
//	// Safe value - no injection
//	result := CheckParameterForInjection(0, "12345")
//	// result == nil
//
//	// Injection attempt detected
//	result := CheckParameterForInjection(1, "'; DROP TABLE users--")
//	// result.IsSQLi == true
//	// result.Fingerprint == "s&1c" (or similar)
func CheckParameterForInjection(index int, value any) *InjectionCheckResult {
	// Only check string values - numbers/booleans can't contain injection
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamIndex:  index,
			ParamValue:  value,
		}
	}

	return nil
}

// CheckParameters screens the positional parameter values bound for
// execution. It returns one result per value that failed the check; an
// empty slice means all values are clean.
func CheckParameters(params []any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for i, value := range params {
		if result := CheckParameterForInjection(i, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}

func (r *InjectionCheckResult) String() string {
	return fmt.Sprintf("parameter %d matched injection fingerprint %s", r.ParamIndex, r.Fingerprint)
}
