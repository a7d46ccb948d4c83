package tasktree

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/stoewer/go-strcase"
)

// DefaultPrefix is prepended to capability ids by the naming convention.
const DefaultPrefix = "gulp"

// CapabilitySource loads capabilities by id. Load returns an error
// wrapping ErrCapabilityNotFound when the id is unknown.
type CapabilitySource interface {
	Load(id, cwd string) (any, error)
}

// Sources tries each source in order.
type Sources []CapabilitySource

// Load implements CapabilitySource. It returns the first error that is not
// ErrCapabilityNotFound, or ErrCapabilityNotFound if no source knows id.
func (s Sources) Load(id, cwd string) (any, error) {
	var firstErr error
	for _, src := range s {
		v, err := src.Load(id, cwd)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrCapabilityNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%s: %w", id, ErrCapabilityNotFound)
}

// Provider builds a capability for a task working directory.
type Provider func(cwd string) (any, error)

// Registry is an in-process CapabilitySource.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under id, replacing any earlier one.
func (r *Registry) Register(id string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[id] = p
}

// RegisterValue registers a fixed value under id.
func (r *Registry) RegisterValue(id string, v any) {
	r.Register(id, func(string) (any, error) { return v, nil })
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[id]
	return ok
}

// Load implements CapabilitySource.
func (r *Registry) Load(id, cwd string) (any, error) {
	r.mu.RLock()
	p, ok := r.providers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrCapabilityNotFound)
	}
	return p(cwd)
}

// FamilyRewrite gives parameters matching Pattern an extra candidate id,
// built by replacing the first Old in the kebab-case name with New.
type FamilyRewrite struct {
	Pattern *regexp.Regexp
	Old     string
	New     string
}

// DefaultFamilies holds the built-in family rewrites.
var DefaultFamilies = []FamilyRewrite{
	{Pattern: regexp.MustCompile(`^rollup[A-Z0-9]`), Old: "rollup-", New: "rollup-plugin-"},
}

// Candidates returns the capability ids tried for a parameter, in order:
// <prefix>-<kebab>, any family rewrites, <kebab>, and the raw name when it
// differs from the kebab-case form. An explicit id replaces the prefixed
// form.
func Candidates(name, explicit, prefix string, families []FamilyRewrite) []string {
	kebab := strcase.KebabCase(name)
	first := explicit
	if first == "" {
		first = kebab
		if prefix != "" {
			first = prefix + "-" + kebab
		}
	}
	ids := []string{first}
	add := func(id string) {
		for _, existing := range ids {
			if existing == id {
				return
			}
		}
		ids = append(ids, id)
	}
	for _, f := range families {
		if f.Pattern.MatchString(name) {
			add(strings.Replace(kebab, f.Old, f.New, 1))
		}
	}
	add(kebab)
	add(name)
	return ids
}
