package engine

import (
	"github.com/shaiso/megaflow/internal/domain"
)

// Node — узел FlowGraph.
type Node struct {
	// Service — метаданные сервиса (копия, сделанная при добавлении).
	Service domain.ServiceDescriptor

	// DependsOn — предшественники в порядке добавления рёбер.
	DependsOn []*Node

	// Dependents — последователи в порядке добавления рёбер.
	Dependents []*Node
}

// Name возвращает имя узла.
func (n *Node) Name() string {
	return n.Service.Name
}

// InDegree возвращает количество входящих рёбер.
func (n *Node) InDegree() int {
	return len(n.DependsOn)
}

// OutDegree возвращает количество исходящих рёбер.
func (n *Node) OutDegree() int {
	return len(n.Dependents)
}

// FlowGraph — направленный ациклический граф микросервисов.
//
// Ребро A → B означает "выход A подаётся на вход B".
// Ацикличность проверяется при каждом Connect.
//
// Граф строится один раз при старте и дальше только читается,
// поэтому методы чтения не берут блокировок.
type FlowGraph struct {
	nodes   map[string]*Node
	ordered []*Node
	primary string
}

// NewFlowGraph создаёт пустой граф.
func NewFlowGraph() *FlowGraph {
	return &FlowGraph{
		nodes: make(map[string]*Node),
	}
}

// AddNode добавляет узел в граф.
func (g *FlowGraph) AddNode(desc domain.ServiceDescriptor) error {
	if desc.Name == "" {
		return ErrEmptyNodeName
	}
	if _, exists := g.nodes[desc.Name]; exists {
		return &DuplicateNodeError{Name: desc.Name}
	}

	node := &Node{
		Service:    desc.Clone(),
		DependsOn:  make([]*Node, 0),
		Dependents: make([]*Node, 0),
	}
	g.nodes[desc.Name] = node
	g.ordered = append(g.ordered, node)

	return nil
}

// Connect добавляет ребро from → to.
//
// Повторное ребро — no-op. При ошибке граф не меняется.
func (g *FlowGraph) Connect(from, to string) error {
	fromNode, ok := g.nodes[from]
	if !ok {
		return &UnknownNodeError{Name: from}
	}
	toNode, ok := g.nodes[to]
	if !ok {
		return &UnknownNodeError{Name: to}
	}

	if from == to || g.reachable(toNode, fromNode) {
		return &CycleError{From: from, To: to}
	}

	for _, dep := range toNode.DependsOn {
		if dep == fromNode {
			return nil // уже связаны
		}
	}

	fromNode.Dependents = append(fromNode.Dependents, toNode)
	toNode.DependsOn = append(toNode.DependsOn, fromNode)

	return nil
}

// reachable проверяет, есть ли путь src ⇝ dst (обход в глубину).
func (g *FlowGraph) reachable(src, dst *Node) bool {
	visited := make(map[*Node]bool)
	stack := []*Node{src}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node == dst {
			return true
		}
		if visited[node] {
			continue
		}
		visited[node] = true

		stack = append(stack, node.Dependents...)
	}

	return false
}

// SetPrimary задаёт узел, чей результат считается основным ответом.
// Пустое имя сбрасывает выбор.
func (g *FlowGraph) SetPrimary(name string) error {
	if name != "" {
		if _, ok := g.nodes[name]; !ok {
			return &UnknownNodeError{Name: name}
		}
	}
	g.primary = name
	return nil
}

// Primary возвращает имя основного узла ("" — не задан).
func (g *FlowGraph) Primary() string {
	return g.primary
}

// Roots возвращает узлы без входящих рёбер в порядке добавления.
func (g *FlowGraph) Roots() []*Node {
	roots := make([]*Node, 0)
	for _, node := range g.ordered {
		if node.InDegree() == 0 {
			roots = append(roots, node)
		}
	}
	return roots
}

// Leaves возвращает узлы без исходящих рёбер в порядке добавления.
func (g *FlowGraph) Leaves() []*Node {
	leaves := make([]*Node, 0)
	for _, node := range g.ordered {
		if node.OutDegree() == 0 {
			leaves = append(leaves, node)
		}
	}
	return leaves
}

// TopologicalOrder возвращает узлы в топологическом порядке (алгоритм Кана).
// Среди готовых узлов первым идёт добавленный раньше.
func (g *FlowGraph) TopologicalOrder() []*Node {
	inDegree := make(map[*Node]int, len(g.ordered))
	for _, node := range g.ordered {
		inDegree[node] = node.InDegree()
	}

	order := make([]*Node, 0, len(g.ordered))
	done := make(map[*Node]bool, len(g.ordered))

	for len(order) < len(g.ordered) {
		// Берём первый по порядку добавления готовый узел
		var next *Node
		for _, node := range g.ordered {
			if !done[node] && inDegree[node] == 0 {
				next = node
				break
			}
		}
		if next == nil {
			// Connect не допускает циклов, сюда попасть нельзя
			break
		}

		done[next] = true
		order = append(order, next)
		for _, dependent := range next.Dependents {
			inDegree[dependent]--
		}
	}

	return order
}

// Validate проверяет, что граф пригоден для обслуживания запросов.
func (g *FlowGraph) Validate() error {
	if len(g.ordered) == 0 {
		return ErrEmptyGraph
	}
	if len(g.Roots()) == 0 {
		return ErrNoRoot
	}
	if len(g.Leaves()) == 0 {
		return ErrNoLeaf
	}
	return nil
}

// Node возвращает узел по имени или nil.
func (g *FlowGraph) Node(name string) *Node {
	return g.nodes[name]
}

// Nodes возвращает все узлы в порядке добавления.
func (g *FlowGraph) Nodes() []*Node {
	return append([]*Node(nil), g.ordered...)
}

// Predecessors возвращает имена предшественников узла.
func (g *FlowGraph) Predecessors(name string) []string {
	node, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return names(node.DependsOn)
}

// Successors возвращает имена последователей узла.
func (g *FlowGraph) Successors(name string) []string {
	node, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return names(node.Dependents)
}

// Len возвращает количество узлов в графе.
func (g *FlowGraph) Len() int {
	return len(g.ordered)
}

// Edges возвращает все рёбра в порядке добавления узлов-источников.
func (g *FlowGraph) Edges() []Edge {
	edges := make([]Edge, 0)
	for _, node := range g.ordered {
		for _, dependent := range node.Dependents {
			edges = append(edges, Edge{From: node.Name(), To: dependent.Name()})
		}
	}
	return edges
}

// Edge — ребро графа.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

func names(nodes []*Node) []string {
	result := make([]string, len(nodes))
	for i, node := range nodes {
		result[i] = node.Name()
	}
	return result
}
