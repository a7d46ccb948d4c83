package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"
)

// DefaultMaxPasses bounds placeholder substitution.
const DefaultMaxPasses = 32

// ErrSubstitutionCycle is returned when placeholder substitution does not
// reach a fixed point within the pass limit.
var ErrSubstitutionCycle = errors.New("settings substitution did not converge")

// PlaceholderError reports a ${...} placeholder naming a value that does
// not exist.
type PlaceholderError struct {
	Placeholder string
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("unknown settings placeholder %s", e.Placeholder)
}

var placeholder = regexp.MustCompile(`\$\{\s*([A-Za-z_$][\w$]*(?:\.[\w$-]+)*)\s*\}`)

// Substitute resolves ${name} and ${name.path} placeholders in every string
// of s against s itself, repeating until a pass leaves the serialized
// document unchanged. String values are inserted as-is; any other value is
// inserted as its JSON text. A non-positive maxPasses uses DefaultMaxPasses.
// The input is not modified.
func Substitute(s Settings, maxPasses int) (Settings, error) {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	current, err := encode(s)
	if err != nil {
		return nil, err
	}
	for range maxPasses {
		next, err := substitutePass(current)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(next, current) {
			out := Settings{}
			if err := json.Unmarshal(current, &out); err != nil {
				return nil, fmt.Errorf("decode substituted settings: %w", err)
			}
			return out, nil
		}
		current = next
	}
	return nil, fmt.Errorf("%w after %d passes", ErrSubstitutionCycle, maxPasses)
}

func substitutePass(doc []byte) ([]byte, error) {
	var firstErr error
	out := placeholder.ReplaceAllFunc(doc, func(token []byte) []byte {
		path := string(placeholder.FindSubmatch(token)[1])
		value := gjson.GetBytes(doc, path)
		if !value.Exists() {
			if firstErr == nil {
				firstErr = &PlaceholderError{Placeholder: string(token)}
			}
			return token
		}
		text := value.Raw
		if value.Type == gjson.String {
			text = value.String()
		}
		escaped, err := encode(text)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return token
		}
		// Strip the surrounding quotes: the token already sits inside a string.
		return escaped[1 : len(escaped)-1]
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
