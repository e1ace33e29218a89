package validator

import (
	"strconv"

	"mercator-hq/arbiter/pkg/model"
)

// branchLabels lists, per branching node, the label pairs the executor selects
// between. A node satisfies the check when every label of one pair is present.
func branchLabels(def *model.WorkflowDefinition, n *model.WorkflowNode) [][]string {
	switch n.Type {
	case model.NodeCondition, model.NodeDecision:
		return [][]string{{model.LabelTrue, model.LabelFalse}}
	case model.NodeValidation:
		return [][]string{
			{model.LabelSuccess, model.LabelError},
			{model.LabelTrue, model.LabelFalse},
		}
	case model.NodeRuleSet, model.NodeBatchProcess:
		if def.UsesPassFail(n) {
			return [][]string{{model.LabelPass, model.LabelFail}}
		}
	}
	return nil
}

// graphChecker runs the structural checks on a workflow graph.
type graphChecker struct {
	def   *model.WorkflowDefinition
	errs  *IssueList
	warns *IssueList

	nodes    map[string]*model.WorkflowNode
	outgoing map[string][]model.WorkflowConnection
	incoming map[string]int
}

func newGraphChecker(def *model.WorkflowDefinition) *graphChecker {
	return &graphChecker{
		def:      def,
		errs:     NewIssueList(),
		warns:    NewIssueList(),
		nodes:    make(map[string]*model.WorkflowNode, len(def.Nodes)),
		outgoing: make(map[string][]model.WorkflowConnection),
		incoming: make(map[string]int),
	}
}

func (g *graphChecker) run() {
	g.checkNodes()
	g.checkStartEnd()
	g.checkConnections()
	g.checkReachability()
	g.checkIncoming()
	g.checkBranches()
}

// checkNodes indexes nodes and rejects empty, duplicate or unknown ones.
func (g *graphChecker) checkNodes() {
	for i := range g.def.Nodes {
		n := &g.def.Nodes[i]
		if n.ID == "" {
			g.errs.Addf(CategoryStructural, "", "", "node at index %d has no id", i)
			continue
		}
		if _, dup := g.nodes[n.ID]; dup {
			g.errs.Addf(CategoryStructural, n.ID, "", "duplicate node id")
			continue
		}
		g.nodes[n.ID] = n

		if !n.Type.IsValid() {
			issue := g.errs.Addf(CategoryStructural, n.ID, "", "unknown node type %q", n.Type)
			issue.Suggestion = suggest(string(n.Type), toStrings(model.NodeKinds))
			continue
		}

		switch n.Type {
		case model.NodeAction:
			if n.Data.Action == nil {
				g.errs.Addf(CategoryStructural, n.ID, "", "action node has no action configured")
			}
		case model.NodeCondition, model.NodeDecision, model.NodeValidation:
			if len(n.Data.Rules) == 0 {
				g.warns.Addf(CategoryStructural, n.ID, "", "%s node has no rules and always takes its false branch", n.Type)
			}
		}
	}
}

// checkStartEnd requires exactly one start node and at least one end node.
func (g *graphChecker) checkStartEnd() {
	starts := g.def.NodesOfKind(model.NodeStart)
	switch len(starts) {
	case 0:
		g.errs.Addf(CategoryStructural, "", "", "workflow has no start node")
	case 1:
	default:
		g.errs.Addf(CategoryStructural, "", "", "workflow has %d start nodes, expected exactly one", len(starts))
	}
	if len(g.def.NodesOfKind(model.NodeEnd)) == 0 {
		g.errs.Addf(CategoryStructural, "", "", "workflow has no end node")
	}
}

// checkConnections resolves endpoints and rejects self loops, duplicate pairs
// and edges leaving end nodes. Only resolved edges feed the later checks.
func (g *graphChecker) checkConnections() {
	type pair struct{ source, target string }
	pairs := make(map[pair]bool, len(g.def.Connections))
	ids := make(map[string]bool, len(g.def.Connections))

	for i, c := range g.def.Connections {
		name := c.ID
		if name == "" {
			name = "#" + strconv.Itoa(i)
		}
		if c.ID != "" {
			if ids[c.ID] {
				g.errs.Addf(CategoryReference, "", "", "connection %s: duplicate connection id", name)
			}
			ids[c.ID] = true
		}

		_, srcOK := g.nodes[c.Source]
		_, dstOK := g.nodes[c.Target]
		if !srcOK {
			issue := g.errs.Addf(CategoryReference, "", "", "connection %s: source %q does not exist", name, c.Source)
			issue.Suggestion = g.suggestNode(c.Source)
		}
		if !dstOK {
			issue := g.errs.Addf(CategoryReference, "", "", "connection %s: target %q does not exist", name, c.Target)
			issue.Suggestion = g.suggestNode(c.Target)
		}
		if c.Source == c.Target {
			g.errs.Addf(CategoryStructural, c.Source, "", "connection %s: source and target are the same node", name)
			continue
		}
		if !srcOK || !dstOK {
			continue
		}

		p := pair{c.Source, c.Target}
		if pairs[p] {
			g.errs.Addf(CategoryStructural, c.Source, "", "connection %s: duplicate connection to %s", name, c.Target)
			continue
		}
		pairs[p] = true

		if g.nodes[c.Source].Type == model.NodeEnd {
			g.errs.Addf(CategoryStructural, c.Source, "", "connection %s: end node has an outgoing connection", name)
		}

		if c.Condition != "" {
			if err := compileCheck(c.Condition, true); err != nil {
				g.errs.Addf(CategoryStructural, c.Source, "", "connection %s: invalid condition: %v", name, err)
			}
		}

		g.outgoing[c.Source] = append(g.outgoing[c.Source], c)
		g.incoming[c.Target]++
	}
}

// checkReachability requires every non-end node to be reachable from start.
func (g *graphChecker) checkReachability() {
	starts := g.def.NodesOfKind(model.NodeStart)
	if len(starts) != 1 {
		return
	}

	visited := map[string]bool{starts[0].ID: true}
	queue := []string{starts[0].ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range g.outgoing[id] {
			if !visited[c.Target] {
				visited[c.Target] = true
				queue = append(queue, c.Target)
			}
		}
	}

	for i := range g.def.Nodes {
		n := &g.def.Nodes[i]
		if n.ID == "" || n.Type == model.NodeEnd || visited[n.ID] {
			continue
		}
		g.errs.Addf(CategoryStructural, n.ID, "", "node is unreachable from start")
	}
}

// checkIncoming requires every non-start node to have an incoming connection.
func (g *graphChecker) checkIncoming() {
	for i := range g.def.Nodes {
		n := &g.def.Nodes[i]
		if n.ID == "" || n.Type == model.NodeStart {
			continue
		}
		if g.incoming[n.ID] == 0 {
			g.errs.Addf(CategoryStructural, n.ID, "", "node has no incoming connection")
		}
	}
}

// checkBranches enforces one edge per branch label and the presence of both
// branches on branching nodes. Single-exit nodes with several unguarded edges
// are ambiguous and only warned about: the executor takes the first.
func (g *graphChecker) checkBranches() {
	for i := range g.def.Nodes {
		n := &g.def.Nodes[i]
		if n.ID == "" || n.Type == model.NodeEnd {
			continue
		}
		out := g.outgoing[n.ID]
		pairs := branchLabels(g.def, n)

		if pairs == nil {
			if len(out) == 0 && n.Type != model.NodeStart {
				g.warns.Addf(CategoryStructural, n.ID, "", "%s node has no outgoing connection", n.Type)
			}
			unguarded := 0
			for _, c := range out {
				if c.Condition == "" {
					unguarded++
				}
			}
			if unguarded > 1 {
				g.warns.Addf(CategoryStructural, n.ID, "", "%d unguarded outgoing connections; the first one declared is taken", unguarded)
			}
			continue
		}

		if len(out) == 0 {
			g.errs.Addf(CategoryStructural, n.ID, "", "%s node has no outgoing connections (dead end)", n.Type)
			continue
		}

		labels := make(map[string]int, len(out))
		for _, c := range out {
			labels[c.Label]++
		}
		reported := make(map[string]bool, len(labels))
		for _, c := range out {
			if labels[c.Label] > 1 && !reported[c.Label] {
				reported[c.Label] = true
				g.errs.Addf(CategoryStructural, n.ID, "", "%d outgoing connections share branch label %q", labels[c.Label], c.Label)
			}
		}

		if !hasPair(labels, pairs) {
			want := pairs[0]
			for _, label := range want {
				if labels[label] == 0 {
					g.errs.Addf(CategoryStructural, n.ID, "", "%s node is missing its %q branch", n.Type, label)
				}
			}
		}

		for _, c := range out {
			if !inPairs(c.Label, pairs) {
				g.warns.Addf(CategoryStructural, n.ID, "", "branch label %q is never selected by a %s node", c.Label, n.Type)
			}
		}
	}
}

func (g *graphChecker) suggestNode(id string) string {
	known := make([]string, 0, len(g.nodes))
	for _, n := range g.def.Nodes {
		if n.ID != "" {
			known = append(known, n.ID)
		}
	}
	return suggest(id, known)
}

func hasPair(labels map[string]int, pairs [][]string) bool {
	for _, pair := range pairs {
		ok := true
		for _, label := range pair {
			if labels[label] == 0 {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func inPairs(label string, pairs [][]string) bool {
	for _, pair := range pairs {
		for _, l := range pair {
			if l == label {
				return true
			}
		}
	}
	return false
}
