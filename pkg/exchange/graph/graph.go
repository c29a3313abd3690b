// Package graph stores one source's currency conversion graph with exact
// rational rates, merges quotes into it and evaluates conversions along
// the shortest hop path.
//
// A Graph is not safe for concurrent mutation. Callers publish a Graph to
// readers only after they are done ingesting into it (see Clone).
package graph

import (
	"math/big"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
)

// Epoch is the timestamp of seeded identity edges.
var Epoch = time.Unix(0, 0).UTC()

// Edge is the merged rate from one currency to another. Cash and Remit
// may be nil; Middle is always set.
type Edge struct {
	Cash      *big.Rat
	Remit     *big.Rat
	Middle    *big.Rat
	UpdatedAt time.Time
}

// Rate returns the rate of the given kind or nil when the edge has none.
func (e *Edge) Rate(kind core.Kind) *big.Rat {
	switch kind {
	case core.Cash:
		return e.Cash
	case core.Remit:
		return e.Remit
	case core.Middle:
		return e.Middle
	}
	return nil
}

type node struct {
	edges map[currency.Code]*Edge
	// order keeps edge insertion order so path search is reproducible.
	order []currency.Code
}

// Graph maps currency → currency → Edge for a single source.
type Graph struct {
	nodes map[currency.Code]*node
	order []currency.Code
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[currency.Code]*node)}
}

// Clone returns a copy that can be mutated without affecting g. Rate values
// are shared since ingestion never mutates a stored *big.Rat in place.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes: make(map[currency.Code]*node, len(g.nodes)),
		order: append([]currency.Code(nil), g.order...),
	}
	for code, n := range g.nodes {
		cn := &node{
			edges: make(map[currency.Code]*Edge, len(n.edges)),
			order: append([]currency.Code(nil), n.order...),
		}
		for to, e := range n.edges {
			ec := *e
			cn.edges[to] = &ec
		}
		c.nodes[code] = cn
	}
	return c
}

// AddCurrency seeds c with its identity edge if the graph does not know it.
func (g *Graph) AddCurrency(c currency.Code) {
	g.ensureNode(currency.Normalize(c))
}

// Len returns the number of currencies in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Currencies returns every currency in insertion order.
func (g *Graph) Currencies() []currency.Code {
	return append([]currency.Code(nil), g.order...)
}

// Has reports whether the graph knows c, after alias resolution.
func (g *Graph) Has(c currency.Code) bool {
	_, ok := g.nodes[g.resolve(c)]
	return ok
}

// Neighbors returns the currencies directly reachable from c, excluding c
// itself, in insertion order.
func (g *Graph) Neighbors(c currency.Code) []currency.Code {
	c = g.resolve(c)
	n, ok := g.nodes[c]
	if !ok {
		return nil
	}
	out := make([]currency.Code, 0, len(n.order))
	for _, to := range n.order {
		if to != c {
			out = append(out, to)
		}
	}
	return out
}

// Edge returns a copy of the direct edge from → to after alias resolution.
func (g *Graph) Edge(from, to currency.Code) (Edge, bool) {
	e := g.edge(g.resolve(from), g.resolve(to))
	if e == nil {
		return Edge{}, false
	}
	return *e, true
}

// LastUpdated returns the oldest update time along the path used to
// convert from → to, which is how stale a conversion answer can be.
func (g *Graph) LastUpdated(from, to currency.Code) (time.Time, error) {
	path, err := g.FindPath(from, to)
	if err != nil {
		return time.Time{}, err
	}
	if len(path) == 1 {
		e := g.edge(path[0], path[0])
		if e == nil {
			return time.Time{}, &core.PathNotFoundError{From: from, To: to}
		}
		return e.UpdatedAt, nil
	}
	var oldest time.Time
	for i := 0; i+1 < len(path); i++ {
		e := g.edge(path[i], path[i+1])
		if i == 0 || e.UpdatedAt.Before(oldest) {
			oldest = e.UpdatedAt
		}
	}
	return oldest, nil
}

// resolve applies alias rules against this graph: RMB is CNY, and CNY
// falls back to CNH when the graph has no native CNY node.
func (g *Graph) resolve(c currency.Code) currency.Code {
	c = currency.Normalize(c)
	if _, ok := g.nodes[c]; ok {
		return c
	}
	if fb, ok := currency.Fallback(c); ok {
		if _, ok := g.nodes[fb]; ok {
			return fb
		}
	}
	return c
}

func (g *Graph) edge(from, to currency.Code) *Edge {
	n, ok := g.nodes[from]
	if !ok {
		return nil
	}
	return n.edges[to]
}

// ensureNode seeds an unseen currency with its identity edge.
func (g *Graph) ensureNode(c currency.Code) *node {
	if n, ok := g.nodes[c]; ok {
		return n
	}
	one := big.NewRat(1, 1)
	n := &node{
		edges: map[currency.Code]*Edge{
			c: {Cash: one, Remit: one, Middle: one, UpdatedAt: Epoch},
		},
		order: []currency.Code{c},
	}
	g.nodes[c] = n
	g.order = append(g.order, c)
	return n
}

func (g *Graph) upsertEdge(from, to currency.Code) *Edge {
	n := g.ensureNode(from)
	if e, ok := n.edges[to]; ok {
		return e
	}
	e := &Edge{}
	n.edges[to] = e
	n.order = append(n.order, to)
	return e
}
