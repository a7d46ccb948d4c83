package tasktree

import (
	"strings"

	"github.com/tidwall/match"
)

// literalMarks escapes the match syntax that is not a wildcard here.
var literalMarks = strings.NewReplacer(`\`, `\\`, "?", `\?`)

// expandGlobs rewrites wildcard references in every pending record's spec
// and watch sources into the matching task ids, in discovery order. A
// wildcard that matches nothing is left in place. A record never matches
// itself.
func expandGlobs(records []*Record) {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	for _, r := range records {
		if r.State == Pending {
			r.Spec = expandSteps(r.Spec, ids, r.ID)
		}
		if r.Watch != nil {
			r.Watch.Sources = expandStrings(r.Watch.Sources, ids, r.ID)
			r.Watch.Trigger = expandSteps(r.Watch.Trigger, ids, r.ID)
		}
	}
}

// MatchIDs returns the ids matching pattern, where * matches any run of
// characters, excluding self. Every other character is literal.
func MatchIDs(pattern string, ids []string, self string) []string {
	pattern = literalMarks.Replace(pattern)
	var found []string
	for _, id := range ids {
		if id != self && match.Match(id, pattern) {
			found = append(found, id)
		}
	}
	return found
}

func expandSteps(steps []Step, ids []string, self string) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		switch v := s.(type) {
		case Ref:
			if !strings.Contains(string(v), "*") {
				out = append(out, v)
				continue
			}
			found := MatchIDs(string(v), ids, self)
			if len(found) == 0 {
				out = append(out, v)
				continue
			}
			for _, id := range found {
				out = append(out, Ref(id))
			}
		case Group:
			out = append(out, Group(expandSteps(v, ids, self)))
		default:
			out = append(out, s)
		}
	}
	return out
}

func expandStrings(entries []string, ids []string, self string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !strings.Contains(e, "*") {
			out = append(out, e)
			continue
		}
		if found := MatchIDs(e, ids, self); len(found) > 0 {
			out = append(out, found...)
			continue
		}
		out = append(out, e)
	}
	return out
}
