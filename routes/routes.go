// Package routes declares the navigation tree of the admin front end.
//
// The tree is static data. Matching, rendering and lazy loading of views
// are left to the front-end router; a view is referenced by an opaque
// ViewRef that the UI framework resolves to a component factory.
package routes

import (
	"errors"
	"fmt"
	"strings"
)

// ViewRef identifies a lazily loaded view component.
type ViewRef string

// Meta holds display-only route metadata.
type Meta struct {
	Title string `json:"title"`
}

// Route binds a path to a view.
type Route struct {
	Path      string  `json:"path"`
	Name      string  `json:"name"`
	Component ViewRef `json:"component"`
	Meta      Meta    `json:"meta"`
	Children  []Route `json:"children,omitempty"`
}

const (
	basicLayout      ViewRef = "#/layouts/basic.vue"
	problemIndexView ViewRef = "#/views/problem/index.vue"
)

// Problem returns the problem management module: one root route with the
// problem list as its index child.
func Problem() []Route {
	return []Route{
		{
			Path:      "/problem",
			Name:      "Problem",
			Component: basicLayout,
			Meta:      Meta{Title: "问题管理"},
			Children: []Route{
				{
					Path:      "",
					Name:      "ProblemList",
					Component: problemIndexView,
					Meta:      Meta{Title: "问题列表"},
				},
			},
		},
	}
}

// All returns every route module, in menu order.
func All() []Route {
	return Problem()
}

// Walk visits every route depth-first, parents before children, passing
// the route and its full path.
func Walk(routes []Route, fn func(r Route, fullPath string) error) error {
	return walk(routes, "", fn)
}

func walk(routes []Route, parent string, fn func(Route, string) error) error {
	for _, r := range routes {
		full := joinPath(parent, r.Path)
		if err := fn(r, full); err != nil {
			return err
		}
		if err := walk(r.Children, full, fn); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(parent, child string) string {
	switch {
	case child == "":
		if parent == "" {
			return "/"
		}
		return parent
	case strings.HasPrefix(child, "/"):
		return child
	default:
		return strings.TrimRight(parent, "/") + "/" + child
	}
}

// Validate checks that route names are unique, top level paths are
// absolute and child paths are relative.
func Validate(routes []Route) error {
	seen := make(map[string]struct{})
	var errs []error

	var check func(rs []Route, depth int)
	check = func(rs []Route, depth int) {
		for _, r := range rs {
			if strings.TrimSpace(r.Name) == "" {
				errs = append(errs, fmt.Errorf("route %q: missing name", r.Path))
			} else if _, ok := seen[r.Name]; ok {
				errs = append(errs, fmt.Errorf("route %q: duplicate name", r.Name))
			} else {
				seen[r.Name] = struct{}{}
			}
			if depth == 0 && !strings.HasPrefix(r.Path, "/") {
				errs = append(errs, fmt.Errorf("route %q: top level path must be absolute", r.Name))
			}
			if depth > 0 && strings.HasPrefix(r.Path, "/") {
				errs = append(errs, fmt.Errorf("route %q: child path must be relative", r.Name))
			}
			if r.Component == "" {
				errs = append(errs, fmt.Errorf("route %q: missing component", r.Name))
			}
			check(r.Children, depth+1)
		}
	}
	check(routes, 0)

	return errors.Join(errs...)
}
