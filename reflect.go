package tasktree

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// reflectedParam is a Param with its default expression parsed.
type reflectedParam struct {
	Param
	// Value is the parsed default. HasDefault is false when Default is
	// empty or not a recognized literal.
	Value      any
	HasDefault bool
}

// reflector caches parameter reflection per invokable for one build.
type reflector struct {
	cache sync.Map // *Invokable -> []reflectedParam
}

func (r *reflector) reflect(inv *Invokable) []reflectedParam {
	if cached, ok := r.cache.Load(inv); ok {
		return cached.([]reflectedParam)
	}
	params := make([]reflectedParam, len(inv.Params))
	for i, p := range inv.Params {
		v, ok := ParseDefault(p.Default)
		params[i] = reflectedParam{Param: p, Value: v, HasDefault: ok}
	}
	actual, _ := r.cache.LoadOrStore(inv, params)
	return actual.([]reflectedParam)
}

var (
	isQuoted  = regexp.MustCompile(`^(["'])(.*)["']$`)
	isInteger = regexp.MustCompile(`^[-+]?\d+$`)
	isFloat   = regexp.MustCompile(`^[-+]?(\d+\.\d*|\.\d+|\d+)([eE][-+]?\d+)?$`)
)

// ParseDefault parses a textual default expression. Recognized literals
// are quoted strings, null, nil, undefined, true, false, integers, floats
// and JSON arrays or objects. The second result is false when expr is
// empty or not a literal.
func ParseDefault(expr string) (any, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, false
	}
	if m := isQuoted.FindStringSubmatch(expr); m != nil && expr[len(expr)-1] == m[1][0] {
		return m[2], true
	}
	switch expr {
	case "null", "nil", "undefined":
		return nil, true
	case "true":
		return true, true
	case "false":
		return false, true
	}
	if isInteger.MatchString(expr) {
		if n, err := strconv.ParseInt(expr, 10, 64); err == nil {
			return n, true
		}
	}
	if isFloat.MatchString(expr) {
		if f, err := strconv.ParseFloat(expr, 64); err == nil {
			return f, true
		}
	}
	if (strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]")) ||
		(strings.HasPrefix(expr, "{") && strings.HasSuffix(expr, "}")) {
		var v any
		if err := json.Unmarshal([]byte(expr), &v); err == nil {
			return v, true
		}
	}
	return nil, false
}
