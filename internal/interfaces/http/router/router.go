// Package router assembles the payout service's HTTP routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// route is one endpoint relative to its surface prefix
type route struct {
	method string
	path   string
	handle gin.HandlerFunc
}

func get(path string, h gin.HandlerFunc) route  { return route{http.MethodGet, path, h} }
func post(path string, h gin.HandlerFunc) route { return route{http.MethodPost, path, h} }
func put(path string, h gin.HandlerFunc) route  { return route{http.MethodPut, path, h} }

// surface is a set of routes under one prefix that share guards (rate
// limits, signature checks, operator auth). Surfaces may share a prefix;
// guards only wrap the surface's own routes.
type surface struct {
	prefix string
	guards []gin.HandlerFunc
	routes []route
}

func (s surface) mount(parent gin.IRouter) {
	g := parent.Group(s.prefix)
	for _, mw := range s.guards {
		if mw != nil {
			g.Use(mw)
		}
	}
	for _, r := range s.routes {
		g.Handle(r.method, r.path, r.handle)
	}
}
