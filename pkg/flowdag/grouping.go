package flowdag

import (
	"fmt"
	"sort"
)

// ExecutionTag is the node tag consulted when assigning tasks to
// executors and when deciding which nodes may share a group.
const ExecutionTag = "execution"

// NodeGroup is a named set of nodes that will execute together as one
// task. Groups partition the execution node set: every node is in exactly
// one group.
type NodeGroup struct {
	// Name identifies the group and becomes the task ID.
	Name string
	// Nodes are the members, in no particular order; the task plan
	// topologically sorts them.
	Nodes []*Node
}

// GroupingStrategy partitions an execution node set into groups. The node
// slice passed in is name-sorted, so deterministic strategies produce the
// same partition for the same graph every time.
type GroupingStrategy interface {
	Group(g *FunctionGraph, nodes []*Node) []NodeGroup
}

// GroupPerNode puts every node in its own group: maximum scheduling
// granularity, maximum scheduling overhead.
type GroupPerNode struct{}

// Group implements GroupingStrategy.
func (GroupPerNode) Group(_ *FunctionGraph, nodes []*Node) []NodeGroup {
	out := make([]NodeGroup, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NodeGroup{Name: n.Name(), Nodes: []*Node{n}})
	}
	return out
}

// GroupByRepeatableBlocks is the default strategy. It collapses linear
// chains into single groups: a node joins its sole consumer's group when
// it is that consumer's sole in-set dependency and both carry the same
// execution tag. Fan-in and fan-out points stay group boundaries, so the
// plan keeps exactly the parallelism the graph shape allows.
type GroupByRepeatableBlocks struct{}

// Group implements GroupingStrategy. The partition is deterministic:
// chains are discovered from name-sorted heads and members are listed
// upstream-first.
func (GroupByRepeatableBlocks) Group(g *FunctionGraph, nodes []*Node) []NodeGroup {
	inSet := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		inSet[n.Name()] = n
	}

	// In-set dependency/dependent counts decide which links are exclusive.
	depsIn := make(map[string][]string, len(nodes))
	dependentsIn := make(map[string][]string, len(nodes))
	for name := range inSet {
		for _, d := range g.Dependencies(name) {
			if _, ok := inSet[d]; ok {
				depsIn[name] = append(depsIn[name], d)
				dependentsIn[d] = append(dependentsIn[d], name)
			}
		}
	}

	chainable := func(from, to string) bool {
		if len(dependentsIn[from]) != 1 || len(depsIn[to]) != 1 {
			return false
		}
		fromTag, _ := inSet[from].Tag(ExecutionTag)
		toTag, _ := inSet[to].Tag(ExecutionTag)
		return fromTag == toTag
	}

	assigned := make(map[string]bool, len(nodes))
	var groups []NodeGroup
	for _, n := range nodes {
		name := n.Name()
		if assigned[name] {
			continue
		}
		// Walk to the head of this node's chain, then collect forward.
		head := name
		for len(depsIn[head]) == 1 && !assigned[depsIn[head][0]] && chainable(depsIn[head][0], head) {
			head = depsIn[head][0]
		}
		members := []*Node{inSet[head]}
		assigned[head] = true
		cur := head
		for len(dependentsIn[cur]) == 1 {
			next := dependentsIn[cur][0]
			if assigned[next] || !chainable(cur, next) {
				break
			}
			members = append(members, inSet[next])
			assigned[next] = true
			cur = next
		}
		groups = append(groups, NodeGroup{Name: head, Nodes: members})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

// GroupByTag groups nodes sharing the same value of a tag key; nodes
// without the tag become singleton groups. Useful for co-locating nodes
// that must run in one process, for example around shared expensive state.
type GroupByTag struct {
	// Key is the tag key to group on.
	Key string
}

// Group implements GroupingStrategy.
func (s GroupByTag) Group(_ *FunctionGraph, nodes []*Node) []NodeGroup {
	byValue := make(map[string][]*Node)
	var groups []NodeGroup
	for _, n := range nodes {
		v, ok := n.Tag(s.Key)
		if !ok {
			groups = append(groups, NodeGroup{Name: n.Name(), Nodes: []*Node{n}})
			continue
		}
		byValue[v] = append(byValue[v], n)
	}
	for _, v := range sortedKeys(byValue) {
		groups = append(groups, NodeGroup{
			Name:  s.Key + "=" + v,
			Nodes: byValue[v],
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

// Task is one schedulable unit: a group of nodes with its induced
// dependencies on other tasks and its input/output boundaries resolved.
type Task struct {
	// ID is the task identifier, taken from the group name.
	ID string
	// Nodes are the members in topological order; running them in order
	// with a shared kwargs scope satisfies every intra-task edge.
	Nodes []*Node
	// Dependencies are IDs of tasks that must complete first.
	Dependencies []string
	// Inputs are names whose values cross into this task from outside:
	// other tasks' outputs, overrides, or external inputs.
	Inputs []string
	// Outputs are member names whose values cross out of this task:
	// consumed by other tasks or requested as final variables.
	Outputs []string
	// Purpose is the task's execution tag, used for executor routing.
	// Empty when members carry none.
	Purpose string
}

// NewTaskPlan turns a group partition into a schedulable task list. Every
// cross-group node edge induces a task dependency; within a group, nodes
// are topologically sorted. Overridden names count as externally supplied,
// never as cross-task edges.
//
// A grouping that merges nodes such that the induced task graph is cyclic
// (group A needs B's output and vice versa) is rejected with *CycleError.
func NewTaskPlan(g *FunctionGraph, groups []NodeGroup, finalVars []string, overrides map[string]any) ([]*Task, error) {
	taskOf := make(map[string]string)
	for _, grp := range groups {
		for _, n := range grp.Nodes {
			taskOf[n.Name()] = grp.Name
		}
	}
	requested := make(map[string]bool, len(finalVars))
	for _, v := range finalVars {
		requested[v] = true
	}

	tasks := make([]*Task, 0, len(groups))
	for _, grp := range groups {
		members := make(map[string]bool, len(grp.Nodes))
		for _, n := range grp.Nodes {
			members[n.Name()] = true
		}

		ordered, err := topoSortNodes(g, grp.Nodes)
		if err != nil {
			return nil, err
		}

		t := &Task{ID: grp.Name, Nodes: ordered}
		depTasks := make(map[string]bool)
		inputs := make(map[string]bool)
		outputs := make(map[string]bool)
		for _, n := range ordered {
			name := n.Name()
			if tag, ok := n.Tag(ExecutionTag); ok && t.Purpose == "" {
				t.Purpose = tag
			}
			for _, d := range g.Dependencies(name) {
				if members[d] {
					continue
				}
				inputs[d] = true
				if _, overridden := overrides[d]; overridden {
					continue
				}
				if owner, ok := taskOf[d]; ok && owner != grp.Name {
					depTasks[owner] = true
				}
			}
			if requested[name] {
				outputs[name] = true
				continue
			}
			for _, c := range g.Dependents(name) {
				if !members[c] {
					outputs[name] = true
					break
				}
			}
		}
		t.Dependencies = sortedKeys(depTasks)
		t.Inputs = sortedKeys(inputs)
		t.Outputs = sortedKeys(outputs)
		tasks = append(tasks, t)
	}

	if cycle := taskGraphCycle(tasks); cycle != nil {
		return nil, &CycleError{Nodes: cycle}
	}
	return tasks, nil
}

// topoSortNodes orders a group's members so every in-group dependency
// precedes its consumer, via Kahn's algorithm with name-sorted tie
// breaking. An in-group cycle is a *CycleError.
func topoSortNodes(g *FunctionGraph, nodes []*Node) ([]*Node, error) {
	inGroup := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		inGroup[n.Name()] = n
	}
	indegree := make(map[string]int, len(nodes))
	for name := range inGroup {
		for _, d := range g.Dependencies(name) {
			if _, ok := inGroup[d]; ok {
				indegree[name]++
			}
		}
	}

	var ready []string
	for name := range inGroup {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	out := make([]*Node, 0, len(nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		out = append(out, inGroup[name])
		var unlocked []string
		for _, c := range g.Dependents(name) {
			if _, ok := inGroup[c]; !ok {
				continue
			}
			indegree[c]--
			if indegree[c] == 0 {
				unlocked = append(unlocked, c)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
	}
	if len(out) != len(nodes) {
		var stuck []string
		for name := range inGroup {
			if indegree[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Nodes: stuck}
	}
	return out, nil
}

// taskGraphCycle detects a cycle in the induced task dependency graph and
// returns its member IDs, or nil when the plan is a DAG.
func taskGraphCycle(tasks []*Task) []string {
	deps := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		deps[t.ID] = t.Dependencies
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(tasks))
	var path []string
	var found []string
	var dfs func(id string) bool
	dfs = func(id string) bool {
		colors[id] = gray
		path = append(path, id)
		for _, d := range deps[id] {
			switch colors[d] {
			case gray:
				for i, p := range path {
					if p == d {
						found = append(append([]string(nil), path[i:]...), d)
						return true
					}
				}
				found = []string{d, id, d}
				return true
			case white:
				if dfs(d) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		colors[id] = black
		return false
	}
	for _, id := range sortedKeys(deps) {
		if colors[id] == white && dfs(id) {
			return found
		}
	}
	return nil
}

// String renders a task for logs and error messages.
func (t *Task) String() string {
	return fmt.Sprintf("task %s (%d nodes, deps %v)", t.ID, len(t.Nodes), t.Dependencies)
}
