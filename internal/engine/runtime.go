package engine

// RuntimeGraph — подграф FlowGraph, реально пройденный одним запросом.
//
// Строится планировщиком после завершения обхода и дальше только читается.
// Узлы хранятся в топологическом порядке FlowGraph, рёбра — только
// между посещёнными узлами.
type RuntimeGraph struct {
	flow    *FlowGraph
	order   []string
	visited map[string]bool
}

// NewRuntimeGraph строит RuntimeGraph из множества посещённых узлов.
// Имена, которых нет во flow, игнорируются.
func NewRuntimeGraph(flow *FlowGraph, visited map[string]bool) *RuntimeGraph {
	rg := &RuntimeGraph{
		flow:    flow,
		order:   make([]string, 0, len(visited)),
		visited: make(map[string]bool, len(visited)),
	}

	for _, node := range flow.TopologicalOrder() {
		if visited[node.Name()] {
			rg.order = append(rg.order, node.Name())
			rg.visited[node.Name()] = true
		}
	}

	return rg
}

// Nodes возвращает посещённые узлы в порядке обхода.
func (rg *RuntimeGraph) Nodes() []string {
	return append([]string(nil), rg.order...)
}

// Contains проверяет, был ли узел посещён.
func (rg *RuntimeGraph) Contains(name string) bool {
	return rg.visited[name]
}

// Len возвращает количество посещённых узлов.
func (rg *RuntimeGraph) Len() int {
	return len(rg.order)
}

// Successors возвращает посещённых последователей узла.
func (rg *RuntimeGraph) Successors(name string) []string {
	if !rg.visited[name] {
		return nil
	}
	result := make([]string, 0)
	for _, next := range rg.flow.Successors(name) {
		if rg.visited[next] {
			result = append(result, next)
		}
	}
	return result
}

// Edges возвращает пройденные рёбра.
func (rg *RuntimeGraph) Edges() []Edge {
	edges := make([]Edge, 0)
	for _, edge := range rg.flow.Edges() {
		if rg.visited[edge.From] && rg.visited[edge.To] {
			edges = append(edges, edge)
		}
	}
	return edges
}

// Leaves возвращает посещённые узлы без посещённых последователей
// в порядке добавления во FlowGraph.
func (rg *RuntimeGraph) Leaves() []string {
	leaves := make([]string, 0)
	for _, node := range rg.flow.Nodes() {
		name := node.Name()
		if rg.visited[name] && len(rg.Successors(name)) == 0 {
			leaves = append(leaves, name)
		}
	}
	return leaves
}
