package graph

import (
	"fmt"
	"math/big"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
)

// FindPath returns the hop sequence from → to, starting with from. It
// prefers a direct edge and otherwise runs a breadth-first search that
// visits neighbors in edge insertion order, so the shortest path wins and
// ties go to the earliest inserted edge.
func (g *Graph) FindPath(from, to currency.Code) ([]currency.Code, error) {
	from, to = g.resolve(from), g.resolve(to)
	if from == to {
		return []currency.Code{from}, nil
	}

	start, ok := g.nodes[from]
	if !ok {
		return nil, &core.PathNotFoundError{From: from, To: to}
	}
	if _, ok := g.nodes[to]; !ok {
		return nil, &core.PathNotFoundError{From: from, To: to}
	}
	if _, ok := start.edges[to]; ok {
		return []currency.Code{from, to}, nil
	}

	parent := map[currency.Code]currency.Code{from: from}
	queue := []currency.Code{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range g.nodes[cur].order {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			if next == to {
				return buildPath(parent, from, to), nil
			}
			if _, ok := g.nodes[next]; ok {
				queue = append(queue, next)
			}
		}
	}

	return nil, &core.PathNotFoundError{From: from, To: to}
}

func buildPath(parent map[currency.Code]currency.Code, from, to currency.Code) []currency.Code {
	var rev []currency.Code
	for c := to; c != from; c = parent[c] {
		rev = append(rev, c)
	}
	rev = append(rev, from)

	path := make([]currency.Code, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}

// Convert evaluates amount along the path from → to using the rate kind.
// With reverse set, amount is expressed in to and the hops are walked
// backwards dividing by each rate, yielding the from amount. A hop that
// lacks the kind fails with a *core.RateKindError.
func (g *Graph) Convert(
	from, to currency.Code,
	kind core.Kind,
	amount *big.Rat,
	reverse bool,
) (*big.Rat, error) {
	if amount == nil {
		return nil, fmt.Errorf("%w: nil amount", core.ErrInvalidAmount)
	}
	path, err := g.FindPath(from, to)
	if err != nil {
		return nil, err
	}

	result := new(big.Rat).Set(amount)
	hops := len(path) - 1
	for i := 0; i < hops; i++ {
		idx := i
		if reverse {
			idx = hops - 1 - i
		}
		a, b := path[idx], path[idx+1]
		rate := g.edge(a, b).Rate(kind)
		if rate == nil {
			return nil, &core.RateKindError{From: a, To: b, Kind: kind}
		}
		if reverse {
			result.Quo(result, rate)
		} else {
			result.Mul(result, rate)
		}
	}
	return result, nil
}
