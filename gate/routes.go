package gate

import "strings"

// Routes maps a path to whether it requires an authenticated session.
// Sub-paths inherit the setting of their closest listed parent, and paths
// not listed at all are protected.
type Routes map[string]bool

// DefaultRoutes is the route table of the console.
func DefaultRoutes() Routes {
	return Routes{
		"/login":     false,
		"/dashboard": true,
		"/companies": true,
		"/credits":   true,
		"/mrv":       true,
		"/audit":     true,
		"/alerts":    true,
		"/analytics": true,
		"/users":     true,
		"/map":       true,
		"/":          true,
	}
}

// RequiresAuth looks up path (query and fragment are ignored).
func (r Routes) RequiresAuth(path string) bool {
	path = cleanPath(path)
	for {
		if requires, ok := r[path]; ok {
			return requires
		}
		if path == "/" || path == "" {
			return true
		}
		i := strings.LastIndex(path, "/")
		if i <= 0 {
			path = "/"
		} else {
			path = path[:i]
		}
	}
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
