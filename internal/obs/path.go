package obs

import "strings"

// CanonicalPath normalizes a request path for metric labels. Query strings
// are stripped and per-tenant path segments are replaced with placeholders
// to keep label cardinality bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if i == 0 || seg == "" {
			continue
		}
		prev := segments[i-1]
		if prev == "workspace" || prev == "workspaces" {
			segments[i] = ":tenant_id"
		}
	}
	return strings.Join(segments, "/")
}
