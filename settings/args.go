package settings

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stoewer/go-strcase"
)

// PositionalKey holds the positional arguments in the map returned by
// ParseArgs.
const PositionalKey = "_"

var (
	isNumber = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][+-]?\d+)?$`)
	isPadded = regexp.MustCompile(`^-?0\d`)
)

// ParseArgs parses command-line arguments into a nested map.
//
// Long flags accept --key=value, --key value and bare --key (true);
// --no-key sets false. Dotted keys build nested maps, so --settings.list.0=a
// produces {"settings": {"list": {"0": "a"}}}. Kebab-case keys are also
// stored under their camelCase alias. Short flags -abc set a, b and c to
// true, and -k value assigns the value to k. Repeated keys collect into a
// slice. Values that look like booleans or numbers are converted.
// Everything after "--", and every non-flag argument, is collected under
// PositionalKey.
func ParseArgs(args []string) map[string]any {
	out := map[string]any{}
	positional := []any{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			for _, rest := range args[i+1:] {
				positional = append(positional, coerce(rest))
			}
			i = len(args)
		case strings.HasPrefix(arg, "--"):
			key, value, hasValue := strings.Cut(arg[2:], "=")
			switch {
			case hasValue:
				assign(out, key, coerce(value))
			case strings.HasPrefix(key, "no-"):
				assign(out, key[3:], false)
			case i+1 < len(args) && !isFlag(args[i+1]):
				assign(out, key, coerce(args[i+1]))
				i++
			default:
				assign(out, key, true)
			}
		case isFlag(arg):
			letters := arg[1:]
			for _, letter := range letters[:len(letters)-1] {
				assign(out, string(letter), true)
			}
			last := letters[len(letters)-1:]
			if i+1 < len(args) && !isFlag(args[i+1]) {
				assign(out, last, coerce(args[i+1]))
				i++
			} else {
				assign(out, last, true)
			}
		default:
			positional = append(positional, coerce(arg))
		}
	}
	out[PositionalKey] = positional
	return out
}

func isFlag(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	// Negative numbers are values.
	return !isNumber.MatchString(arg)
}

func assign(out map[string]any, key string, value any) {
	if key == "" {
		return
	}
	set := func(path string) {
		next := value
		if existing, ok := GetByPath(out, path); ok {
			switch prev := existing.(type) {
			case map[string]any:
			case []any:
				next = append(prev, value)
			default:
				next = []any{prev, value}
			}
		}
		SetByPath(out, path, next)
	}
	set(key)
	if alias := camelPath(key); alias != key {
		set(alias)
	}
}

// camelPath converts each kebab-case segment of a dotted path to camelCase.
func camelPath(path string) string {
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if strings.Contains(part, "-") {
			parts[i] = strcase.LowerCamelCase(part)
		}
	}
	return strings.Join(parts, ".")
}

func coerce(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	// Leading-zero strings such as "007" stay strings.
	if isNumber.MatchString(raw) && !isPadded.MatchString(raw) {
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	}
	return raw
}
