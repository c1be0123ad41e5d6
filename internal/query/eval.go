package query

import (
	"strconv"
	"strings"
)

// Eval decides whether one document matches the predicate tree. Documents
// are field maps; nested maps are addressed with dot paths. A term over a
// field the document does not carry never matches.
func Eval(expr Expr, doc map[string]any) bool {
	switch e := expr.(type) {
	case MatchAll:
		return true
	case Term:
		return evalTerm(e, doc)
	case And:
		for _, child := range e.Exprs {
			if !Eval(child, doc) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range e.Exprs {
			if Eval(child, doc) {
				return true
			}
		}
		return false
	case Not:
		return !Eval(e.Expr, doc)
	default:
		return false
	}
}

func evalTerm(t Term, doc map[string]any) bool {
	raw, ok := Lookup(doc, t.Field)
	if !ok {
		return false
	}
	have := Stringify(raw)

	switch t.Rel {
	case RelEq:
		return have == t.Value
	case RelNotEq:
		return have != t.Value
	case RelMatch:
		return wildcardMatch(t.Value, have)
	case RelLess, RelGreater, RelLessEq, RelGreatEq:
		cmp := compareValues(raw, t.Value)
		switch t.Rel {
		case RelLess:
			return cmp < 0
		case RelGreater:
			return cmp > 0
		case RelLessEq:
			return cmp <= 0
		default:
			return cmp >= 0
		}
	}
	return false
}

// Lookup resolves a dot path against nested maps.
func Lookup(doc map[string]any, field string) (any, bool) {
	parts := strings.Split(field, ".")
	var current any = doc
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Stringify renders a document value for comparison and facet bucketing.
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}

// compareValues orders numerically when both sides are numbers, otherwise
// lexicographically. RFC 3339 timestamps order correctly as strings.
func compareValues(have any, want string) int {
	haveStr := Stringify(have)
	haveNum, haveErr := strconv.ParseFloat(haveStr, 64)
	wantNum, wantErr := strconv.ParseFloat(want, 64)
	if haveErr == nil && wantErr == nil {
		switch {
		case haveNum < wantNum:
			return -1
		case haveNum > wantNum:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(haveStr, want)
}

// wildcardMatch performs case-insensitive matching with '*' spanning any run
// of characters. A pattern without '*' is a plain case-insensitive equality.
func wildcardMatch(pattern, value string) bool {
	pattern = strings.ToLower(pattern)
	value = strings.ToLower(value)
	if !strings.Contains(pattern, "*") {
		return pattern == value
	}
	segments := strings.Split(pattern, "*")
	rest := value
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		idx := strings.Index(rest, segment)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		rest = rest[idx+len(segment):]
	}
	last := segments[len(segments)-1]
	if last != "" && !strings.HasSuffix(value, last) {
		return false
	}
	return true
}
