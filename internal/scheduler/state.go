package scheduler

import (
	"fmt"
	"maps"
	"regexp"
	"sync"
	"time"

	"github.com/shaiso/megaflow/internal/domain"
	"github.com/shaiso/megaflow/internal/engine"
	"github.com/shaiso/megaflow/internal/invoker"
)

// BlacklistKey — поле ответа узла со списком регулярных выражений.
// Последователи, чьё имя совпало с одним из них, не вызываются.
const BlacklistKey = "downstream_black_list"

// executionState — состояние одного обхода графа в памяти.
//
// Создаётся на каждый вызов Schedule и не разделяется между запросами.
// Все поля защищены mu.
type executionState struct {
	graph  *engine.FlowGraph
	inputs map[string]any
	params domain.LLMParams

	// remaining — количество ещё не решённых предшественников.
	remaining map[string]int

	statuses map[string]domain.NodeStatus
	outcomes map[string]invoker.Outcome
	records  map[string]domain.NodeRecord

	// order — порядок завершения вызовов.
	order []string

	mu sync.Mutex
}

func newExecutionState(graph *engine.FlowGraph, inputs map[string]any, params domain.LLMParams) *executionState {
	st := &executionState{
		graph:     graph,
		inputs:    inputs,
		params:    params,
		remaining: make(map[string]int, graph.Len()),
		statuses:  make(map[string]domain.NodeStatus, graph.Len()),
		outcomes:  make(map[string]invoker.Outcome),
		records:   make(map[string]domain.NodeRecord, graph.Len()),
	}

	for _, node := range graph.Nodes() {
		st.remaining[node.Name()] = node.InDegree()
		st.statuses[node.Name()] = domain.NodeStatusPending
	}

	return st
}

// prepare решает судьбу узла, все предшественники которого уже решены.
//
// Возвращает payload для вызова или непустую причину пропуска.
func (st *executionState) prepare(node *engine.Node) (map[string]any, string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	name := node.Name()

	var payload map[string]any
	if node.InDegree() == 0 {
		payload = make(map[string]any, len(st.inputs)+1)
		maps.Copy(payload, st.inputs)
	} else {
		payload = make(map[string]any)
		for _, pred := range node.DependsOn {
			predName := pred.Name()
			switch status := st.statuses[predName]; status {
			case domain.NodeStatusFailed, domain.NodeStatusSkipped, domain.NodeStatusStreaming:
				return nil, fmt.Sprintf("predecessor %s is %s", predName, status)
			}

			body := st.outcomes[predName].Body
			if pattern, ok := matchBlacklist(body[BlacklistKey], name); ok {
				return nil, fmt.Sprintf("excluded by %s (%s)", predName, pattern)
			}
			maps.Copy(payload, body)
		}
		delete(payload, BlacklistKey)
	}

	if !hasAnyInput(payload, node.Service.RequiredInputs()) {
		return nil, fmt.Sprintf("none of required inputs %v present", node.Service.RequiredInputs())
	}

	if node.Service.Role == domain.RoleLLM {
		payload["parameters"] = st.params
	}

	st.statuses[name] = domain.NodeStatusRunning
	return payload, ""
}

// skip помечает узел пропущенным и возвращает ставших готовыми последователей.
func (st *executionState) skip(name, reason string) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.statuses[name] = domain.NodeStatusSkipped
	st.records[name] = domain.NodeRecord{
		Name:   name,
		Status: domain.NodeStatusSkipped,
		Error:  reason,
	}

	return st.release(name)
}

// complete сохраняет Outcome узла и возвращает ставших готовыми последователей.
func (st *executionState) complete(name string, outcome invoker.Outcome, elapsed time.Duration) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	status := nodeStatus(outcome)
	st.statuses[name] = status
	st.outcomes[name] = outcome
	st.records[name] = domain.NodeRecord{
		Name:     name,
		Status:   status,
		Error:    outcome.ErrorMessage(),
		Duration: elapsed,
	}
	st.order = append(st.order, name)

	return st.release(name)
}

// release уменьшает счётчики последователей. Вызывается под mu.
func (st *executionState) release(name string) []string {
	var ready []string
	for _, next := range st.graph.Successors(name) {
		st.remaining[next]--
		if st.remaining[next] == 0 {
			ready = append(ready, next)
		}
	}
	return ready
}

// closeStreams закрывает все открытые потоки.
func (st *executionState) closeStreams() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	return invoker.CloseStreams(st.outcomes, nil)
}

// result собирает Result после завершения обхода.
func (st *executionState) result() *Result {
	st.mu.Lock()
	defer st.mu.Unlock()

	visited := make(map[string]bool, len(st.outcomes))
	for name := range st.outcomes {
		visited[name] = true
	}

	topo := st.graph.TopologicalOrder()
	records := make([]domain.NodeRecord, 0, len(topo))
	for _, node := range topo {
		if rec, ok := st.records[node.Name()]; ok {
			records = append(records, rec)
		}
	}

	return &Result{
		Outcomes: maps.Clone(st.outcomes),
		Runtime:  engine.NewRuntimeGraph(st.graph, visited),
		Order:    append([]string(nil), st.order...),
		Statuses: maps.Clone(st.statuses),
		Records:  records,
	}
}

func nodeStatus(outcome invoker.Outcome) domain.NodeStatus {
	switch outcome.Kind {
	case invoker.KindComplete:
		return domain.NodeStatusSucceeded
	case invoker.KindStreaming:
		return domain.NodeStatusStreaming
	default:
		return domain.NodeStatusFailed
	}
}

func hasAnyInput(payload map[string]any, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, key := range required {
		if _, ok := payload[key]; ok {
			return true
		}
	}
	return false
}

// matchBlacklist проверяет имя узла по списку шаблонов из ответа предшественника.
// Некорректные шаблоны игнорируются.
func matchBlacklist(value any, name string) (string, bool) {
	var patterns []string
	switch v := value.(type) {
	case string:
		patterns = []string{v}
	case []string:
		patterns = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				patterns = append(patterns, s)
			}
		}
	default:
		return "", false
	}

	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if ok, err := regexp.MatchString(pattern, name); err == nil && ok {
			return pattern, true
		}
	}
	return "", false
}
