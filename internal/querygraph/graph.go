// Package querygraph builds the bipartite graph of QueryField and
// ProvidableField/Resolver nodes (§4.2) that the solver turns into a Steiner
// tree. Grounded on federation/graph/weighted_graph.go's
// WeightedDirectedGraph/Dijkstra, generalized from a flat type/field-keyed
// graph into the three node kinds the specification names, using a Kind
// discriminant rather than separate node types per §9's dispatch guidance.
package querygraph

import (
	"container/heap"
	"fmt"

	"github.com/n9te9/federation-core/internal/supergraph"
)

// Kind discriminates the three node roles the solver reasons about.
type Kind int

const (
	// KindResolver is a "enter subgraph S" root entry point.
	KindResolver Kind = iota
	// KindProvidableField is "produce field F inside the current subgraph reach".
	KindProvidableField
	// KindQueryField is a single response position the operation asked for.
	KindQueryField
)

// EdgeKind discriminates the edge roles named in §3.3.
type EdgeKind int

const (
	EdgeCreateChildResolver EdgeKind = iota // cost 1: descend into a new subgraph
	EdgeCanProvide                          // cost 0: reuse the current subgraph
	EdgeProvides                            // cost 0 constraint edge
	EdgeRequires                            // zero-weight constraint edge; adjusts incoming cost
	EdgeField                               // binds a ProvidableField to the QueryField it satisfies
)

// Node is a single graph vertex. Only the fields relevant to Kind are
// populated, per the Kind+struct dispatch idiom over small-interface graphs.
type Node struct {
	ID   string
	Kind Kind

	SubGraph  *supergraph.SubGraph // KindResolver / KindProvidableField
	TypeName  string
	FieldName string // empty for KindResolver and type-level ProvidableField nodes

	IsIndispensable bool // KindQueryField: not behind a dispensable fragment
	IsScalar        bool // KindQueryField: leaf terminal candidate

	Edges    map[string]int // dstID -> weight, minimum wins
	Provides map[string]int // @provides shortcut edges, always weight 0
	Requires []string       // dstID(s) of required QueryField nodes, for KindProvidableField
}

// Graph is the full bipartite query graph for one bound operation.
type Graph struct {
	Nodes map[string]*Node
}

func New() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// ResolverKey / ProvidableFieldKey / QueryFieldKey mirror weighted_graph.go's
// NodeKey, split per node kind so the three namespaces can never collide.
func ResolverKey(subGraphName string) string {
	return fmt.Sprintf("resolver:%s", subGraphName)
}

func ProvidableFieldKey(subGraphName, typeName, fieldName string) string {
	if fieldName == "" {
		return fmt.Sprintf("%s:%s", subGraphName, typeName)
	}
	return fmt.Sprintf("%s:%s.%s", subGraphName, typeName, fieldName)
}

func QueryFieldKey(path string) string {
	return "qf:" + path
}

func (g *Graph) addNode(n *Node) *Node {
	if existing, ok := g.Nodes[n.ID]; ok {
		return existing
	}
	n.Edges = make(map[string]int)
	n.Provides = make(map[string]int)
	g.Nodes[n.ID] = n
	return n
}

// AddResolver registers (idempotently) the "enter subgraph" root node.
func (g *Graph) AddResolver(sg *supergraph.SubGraph) *Node {
	return g.addNode(&Node{ID: ResolverKey(sg.Name), Kind: KindResolver, SubGraph: sg})
}

// AddProvidableField registers a candidate evaluator for typeName.fieldName
// inside subgraph sg.
func (g *Graph) AddProvidableField(sg *supergraph.SubGraph, typeName, fieldName string) *Node {
	return g.addNode(&Node{
		ID:        ProvidableFieldKey(sg.Name, typeName, fieldName),
		Kind:      KindProvidableField,
		SubGraph:  sg,
		TypeName:  typeName,
		FieldName: fieldName,
	})
}

// AddQueryField registers a single response position.
func (g *Graph) AddQueryField(path string, indispensable, scalar bool) *Node {
	n := g.addNode(&Node{ID: QueryFieldKey(path), Kind: KindQueryField})
	n.IsIndispensable = n.IsIndispensable || indispensable
	n.IsScalar = n.IsScalar || scalar
	return n
}

// AddEdge adds a directed edge, keeping the minimum weight on conflict.
func (g *Graph) AddEdge(srcID, dstID string, weight int) {
	src, ok := g.Nodes[srcID]
	if !ok {
		return
	}
	if existing, exists := src.Edges[dstID]; !exists || weight < existing {
		src.Edges[dstID] = weight
	}
}

// AddProvidesShortcut adds a zero-cost @provides edge from srcID to dstID.
func (g *Graph) AddProvidesShortcut(srcID, dstID string) {
	src, ok := g.Nodes[srcID]
	if !ok {
		return
	}
	src.Provides[dstID] = 0
}

// ---------------------------------------------------------------------
// Dijkstra, unchanged in spirit from weighted_graph.go: a min-heap over
// node cost, relaxing both regular and @provides-shortcut edges.
// ---------------------------------------------------------------------

type item struct {
	nodeID string
	cost   int
	index  int
}

type pq []*item

func (q pq) Len() int            { return len(q) }
func (q pq) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q pq) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *pq) Push(x any)         { it := x.(*item); it.index = len(*q); *q = append(*q, it) }
func (q *pq) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// ShortestPaths holds the result of a Dijkstra run from a set of entry points.
type ShortestPaths struct {
	Dist map[string]int
	Prev map[string]string
}

const Unreachable = int(^uint(0) >> 1)

// Dijkstra computes shortest distances from entryPoints to every node,
// relaxing both Edges and the zero-cost Provides shortcuts.
func (g *Graph) Dijkstra(entryPoints []string) *ShortestPaths {
	dist := make(map[string]int, len(g.Nodes))
	prev := make(map[string]string, len(g.Nodes))
	for id := range g.Nodes {
		dist[id] = Unreachable
	}

	h := &pq{}
	heap.Init(h)
	for _, ep := range entryPoints {
		if _, ok := g.Nodes[ep]; ok {
			dist[ep] = 0
			heap.Push(h, &item{nodeID: ep, cost: 0})
		}
	}

	for h.Len() > 0 {
		cur := heap.Pop(h).(*item)
		if cur.cost > dist[cur.nodeID] {
			continue
		}
		node := g.Nodes[cur.nodeID]

		for dst, w := range node.Edges {
			if nc := dist[cur.nodeID] + w; nc < dist[dst] {
				dist[dst] = nc
				prev[dst] = cur.nodeID
				heap.Push(h, &item{nodeID: dst, cost: nc})
			}
		}
		for dst := range node.Provides {
			if nc := dist[cur.nodeID]; nc < dist[dst] {
				dist[dst] = nc
				prev[dst] = cur.nodeID
				heap.Push(h, &item{nodeID: dst, cost: nc})
			}
		}
	}

	return &ShortestPaths{Dist: dist, Prev: prev}
}

// ReconstructPath returns the entry-point-to-dstID path, or nil if unreachable.
func (sp *ShortestPaths) ReconstructPath(dstID string) []string {
	if c, ok := sp.Dist[dstID]; !ok || c == Unreachable {
		return nil
	}
	var path []string
	seen := make(map[string]bool)
	for cur := dstID; cur != ""; {
		if seen[cur] {
			break
		}
		seen[cur] = true
		path = append([]string{cur}, path...)
		p, ok := sp.Prev[cur]
		if !ok {
			break
		}
		cur = p
	}
	return path
}

// Build constructs the per-subgraph resolver/providable-field skeleton of
// the query graph: one Resolver per subgraph, one ProvidableField per
// entity field, CreateChildResolver/CanProvide edges, and @provides
// shortcuts. QueryField nodes and their Field/Requires edges are added
// per-operation by internal/plan (solve.go) as it walks the bound selection
// set.
func Build(subGraphs []*supergraph.SubGraph) *Graph {
	g := New()

	for _, sg := range subGraphs {
		resolver := g.AddResolver(sg)

		for typeName, entity := range sg.GetEntities() {
			typeNode := g.AddProvidableField(sg, typeName, "")
			g.AddEdge(resolver.ID, typeNode.ID, 1) // CreateChildResolver

			for fieldName, field := range entity.Fields {
				fieldNode := g.AddProvidableField(sg, typeName, fieldName)
				fieldNode.Requires = field.Requires
				g.AddEdge(typeNode.ID, fieldNode.ID, 0) // CanProvide, same subgraph

				for _, provided := range field.Provides {
					placeholder := fmt.Sprintf("%s:%s.%s:%s", sg.Name, typeName, fieldName, provided)
					g.AddProvidesShortcut(fieldNode.ID, placeholder)
				}
			}
		}
	}

	// Cross-subgraph entity edges: any subgraph holding the same entity type
	// can CreateChildResolver into any other that also holds it (weight 1).
	holders := make(map[string][]*supergraph.SubGraph)
	for _, sg := range subGraphs {
		for typeName := range sg.GetEntities() {
			holders[typeName] = append(holders[typeName], sg)
		}
	}
	for typeName, sgs := range holders {
		for i, a := range sgs {
			for _, b := range sgs[i+1:] {
				g.AddEdge(ProvidableFieldKey(a.Name, typeName, ""), ProvidableFieldKey(b.Name, typeName, ""), 1)
				g.AddEdge(ProvidableFieldKey(b.Name, typeName, ""), ProvidableFieldKey(a.Name, typeName, ""), 1)
			}
		}
	}

	g.resolveProvidesShortcuts()
	return g
}

func (g *Graph) resolveProvidesShortcuts() {
	for _, node := range g.Nodes {
		if len(node.Provides) == 0 {
			continue
		}
		resolved := make(map[string]int)
		for placeholder := range node.Provides {
			last := -1
			for i := len(placeholder) - 1; i >= 0; i-- {
				if placeholder[i] == ':' {
					last = i
					break
				}
			}
			providedField := placeholder[last+1:]

			found := false
			for key, candidate := range g.Nodes {
				if candidate.Kind == KindProvidableField &&
					candidate.FieldName == providedField &&
					candidate.SubGraph.Name != node.SubGraph.Name {
					resolved[key] = 0
					found = true
					break
				}
			}
			if !found {
				resolved[placeholder] = 0
			}
		}
		node.Provides = resolved
	}
}
