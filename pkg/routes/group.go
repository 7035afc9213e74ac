// Package routes declares HTTP endpoints as nested groups and registers
// them on a ServeMux using method-qualified patterns.
package routes

import (
	"net/http"

	"github.com/JaimeStill/creditdesk/pkg/middleware"
)

// Route binds a method and a pattern, relative to its group, to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Group shares a prefix and middleware across its routes and children.
// A child's middleware runs inside its parent's.
type Group struct {
	Prefix     string
	Middleware middleware.Stack
	Routes     []Route
	Children   []Group
}

// Register adds every route of groups to mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, g := range groups {
		g.register(mux, "", nil)
	}
}

func (g Group) register(mux *http.ServeMux, prefix string, parent middleware.Stack) {
	prefix += g.Prefix
	stack := parent.Extend(g.Middleware...)

	for _, r := range g.Routes {
		mux.Handle(r.Method+" "+prefix+r.Pattern, stack.Wrap(r.Handler))
	}
	for _, child := range g.Children {
		child.register(mux, prefix, stack)
	}
}
