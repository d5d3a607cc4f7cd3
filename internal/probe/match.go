package probe

import "strings"

// matchRecommendation computes the tri-state recommendation match for a
// probed value. Structural equality between the decoded current and
// recommended values is preferred; when that is inconclusive (null on either
// side, embedded type mismatch) the comparison falls back to the
// case-insensitive display strings. No recommendation at all means the match
// is unknown (nil), not false.
func matchRecommendation(current, recommended any, currentDisplay []string, recommendedDisplay string) *bool {
	if recommended == nil && recommendedDisplay == "" {
		return nil
	}

	if equal, conclusive := structuralEqual(current, recommended); conclusive {
		return &equal
	}

	if recommendedDisplay == "" {
		return nil
	}
	equal := strings.EqualFold(joinDisplay(currentDisplay), recommendedDisplay)
	return &equal
}

// structuralEqual compares two decoded JSON values. The second return value
// is false when the comparison is inconclusive and the caller should fall
// back to display comparison.
func structuralEqual(a, b any) (equal, conclusive bool) {
	if a == nil || b == nil {
		return false, false
	}

	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return false, false
		}
		return af == bf, true
	}

	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok {
			return false, false
		}
		if len(av) != len(bv) {
			return false, true
		}
		// Ordered pairwise comparison; any inconclusive pair makes the
		// whole sequence comparison inconclusive.
		for i := range av {
			eq, ok := structuralEqual(av[i], bv[i])
			if !ok {
				return false, false
			}
			if !eq {
				return false, true
			}
		}
		return true, true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok {
			return false, false
		}
		if len(av) != len(bv) {
			return false, true
		}
		for k, aval := range av {
			bval, present := bv[k]
			if !present {
				return false, true
			}
			eq, ok := structuralEqual(aval, bval)
			if !ok {
				return false, false
			}
			if !eq {
				return false, true
			}
		}
		return true, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return false, false
		}
		return av == bv, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return false, false
		}
		return av == bv, true
	default:
		return false, false
	}
}

// toFloat normalizes numeric values; catalog definitions decoded from Go
// literals may carry int where script payloads carry float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// joinDisplay flattens the current display form(s) into one comparable
// string.
func joinDisplay(display []string) string {
	switch len(display) {
	case 0:
		return ""
	case 1:
		return display[0]
	default:
		return strings.Join(display, ", ")
	}
}
