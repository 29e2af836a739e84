package answer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// End terminates a graph run.
const End = "__end__"

const maxSteps = 32

// Node is one stage. A node reports failure through State.Err so that
// edges can route on it.
type Node func(ctx context.Context, state *State)

// Router picks the next node from the state a node left behind.
type Router func(state *State) string

type Graph struct {
	entry string
	nodes map[string]Node
	edges map[string]Router
	order []string
}

func (g *Graph) AddNode(name string, node Node) *Graph {
	if _, ok := g.nodes[name]; !ok {
		g.order = append(g.order, name)
	}
	g.nodes[name] = node
	return g
}

func (g *Graph) AddEdge(from string, to string) *Graph {
	g.edges[from] = func(*State) string { return to }
	return g
}

func (g *Graph) AddConditionalEdge(from string, route Router) *Graph {
	g.edges[from] = route
	return g
}

func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// Validate checks that the entry exists and every node has an outgoing
// edge.
func (g *Graph) Validate() error {
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("entry node %q is not defined", g.entry)
	}

	for _, name := range g.order {
		if _, ok := g.edges[name]; !ok {
			return fmt.Errorf("node %q has no outgoing edge", name)
		}
	}

	return nil
}

// Run walks the graph from the entry node until End. It fails only when the
// graph itself is broken; stage failures live in the state.
func (g *Graph) Run(ctx context.Context, state *State) error {
	current := g.entry

	for step := 0; current != End; step++ {
		if step >= maxSteps {
			return fmt.Errorf("graph exceeded %d steps", maxSteps)
		}

		node, ok := g.nodes[current]
		if !ok {
			return fmt.Errorf("node %q is not defined", current)
		}

		route, ok := g.edges[current]
		if !ok {
			return fmt.Errorf("node %q has no outgoing edge", current)
		}

		nctx, span := tracer.Start(ctx, "answer."+current)
		node(nctx, state)
		if state.Err != nil {
			span.RecordError(state.Err)
			span.SetStatus(codes.Error, current)
		}
		span.SetAttributes(attribute.Int("step", step))
		span.End()

		current = route(state)
	}

	return nil
}

func NewGraph() *Graph {
	return &Graph{
		nodes: map[string]Node{},
		edges: map[string]Router{},
		order: []string{},
	}
}
