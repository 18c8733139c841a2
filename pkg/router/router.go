// Package router implements the route table: compiling worker records'
// route patterns at startup and resolving an inbound request path to at
// most one worker, by longest literal-prefix match.
//
// Grounded on the host/path matching in the ingress router this system's
// route table descends from, narrowed here to path-only matching (routes
// are method-agnostic — a worker is free to reject methods it doesn't
// support) and extended with startup-time ambiguity rejection, which the
// original router does not need because its host+path combination rarely
// produces exact prefix ties.
package router

import (
	"fmt"
	"strings"

	"github.com/cuemby/localproxy/pkg/types"
)

type compiledRoute struct {
	pattern  string
	prefix   string
	wildcard bool
	worker   *types.WorkerRecord
}

// Table is an immutable, compiled route table. It is safe for concurrent
// reads from any number of goroutines without synchronization, since it
// is built once at startup and never mutated afterward.
type Table struct {
	routes []compiledRoute
}

// Compile builds a Table from worker records, rejecting manifests where
// two distinct route patterns reduce to the same literal prefix length
// and text — an ambiguous tie that cannot be resolved by longest-prefix
// matching.
func Compile(records []*types.WorkerRecord) (*Table, error) {
	routes := make([]compiledRoute, 0, len(records))
	seen := make(map[string]string, len(records))

	for _, rec := range records {
		prefix, wildcard := literalPrefix(rec.RoutePattern)
		if other, ok := seen[prefix]; ok {
			return nil, fmt.Errorf("ambiguous route pattern %q: ties with %q on literal prefix %q", rec.RoutePattern, other, prefix)
		}
		seen[prefix] = rec.RoutePattern
		routes = append(routes, compiledRoute{
			pattern:  rec.RoutePattern,
			prefix:   prefix,
			wildcard: wildcard,
			worker:   rec,
		})
	}

	return &Table{routes: routes}, nil
}

// Resolve returns the worker whose route pattern matches path by the
// longest literal prefix, or ok=false on a route miss.
func (t *Table) Resolve(path string) (*types.WorkerRecord, bool) {
	var best *compiledRoute
	bestLen := -1

	for i := range t.routes {
		r := &t.routes[i]
		if !matches(r, path) {
			continue
		}
		if len(r.prefix) > bestLen {
			best = r
			bestLen = len(r.prefix)
		}
	}

	if best == nil {
		return nil, false
	}
	return best.worker, true
}

func matches(r *compiledRoute, path string) bool {
	if !r.wildcard {
		return path == r.prefix
	}
	if path == r.prefix {
		return true
	}
	return strings.HasPrefix(path, r.prefix+"/")
}

// literalPrefix returns a pattern's literal (non-wildcard) prefix and
// whether the pattern is a wildcard ("/*"-suffixed) pattern.
func literalPrefix(pattern string) (string, bool) {
	if strings.HasSuffix(pattern, "/*") {
		return strings.TrimSuffix(pattern, "/*"), true
	}
	return pattern, false
}

// PathOnly strips the query string from a URI (path?query), leaving just
// the path portion used for both route matching and cache keys.
func PathOnly(uri string) string {
	if idx := strings.IndexByte(uri, '?'); idx != -1 {
		return uri[:idx]
	}
	return uri
}
