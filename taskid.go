package tasktree

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DeriveID maps a task file to its task id: the path relative to the
// owning directory, without the part matched by filter, with path
// segments joined by ':'. A leading "<label>:" segment is dropped so the
// scoped sub-directory never appears in ids.
func DeriveID(leaf *Leaf, filter *regexp.Regexp) string {
	rel := leaf.Path
	if leaf.Cwd != "." {
		rel = strings.TrimPrefix(rel, leaf.Cwd)
	}
	if filter != nil {
		if loc := filter.FindStringIndex(rel); loc != nil {
			rel = rel[:loc[0]] + rel[loc[1]:]
		}
	}
	var segments []string
	for _, seg := range strings.Split(rel, string(os.PathSeparator)) {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	id := strings.Join(segments, ":")
	if label := strings.Trim(filepath.ToSlash(leaf.Label), "/"); label != "" {
		id = strings.TrimPrefix(id, strings.ReplaceAll(label, "/", ":")+":")
	}
	return id
}
