package discovery

import (
	"sort"
	"strings"

	"github.com/vyrodovalexey/avrouter/internal/binding"
	"github.com/vyrodovalexey/avrouter/internal/handler"
	"github.com/vyrodovalexey/avrouter/internal/pipeline"
)

// Node is one segment of the route tree. Parameter segments are stored
// in brace form ({name}) so tree keys line up with URL patterns.
type Node struct {
	Segment  string
	Children map[string]*Node
	Entry    *Entry // nil for intermediate nodes
	Dir      string // absolute source directory
}

// Entry is one discovered route: the pattern, the instantiated handler,
// its probed verb calls, and the per-method decorator config from the
// route file. Entries are built once at discovery and never mutated.
type Entry struct {
	Pattern     string
	HandlerName string
	Handler     handler.Handler
	Methods     map[string]MethodConfig
	Calls       map[string]pipeline.CallFunc
	Specs       map[string][]binding.Spec
	Bound       map[string]*binding.BoundSpecs
	Tag         string
	Params      []string
	Dir         string
}

// MethodNames returns the entry's verbs in sorted order.
func (e *Entry) MethodNames() []string {
	names := make([]string, 0, len(e.Calls))
	for verb := range e.Calls {
		names = append(names, verb)
	}
	sort.Strings(names)
	return names
}

// Tree is the immutable result of a discovery walk. Reload replaces the
// whole tree rather than mutating it.
type Tree struct {
	root    *Node
	entries []*Entry
	dirs    []string
}

// Routes returns the discovered entries sorted by pattern.
func (t *Tree) Routes() []*Entry {
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Dirs returns every directory the walk visited, sorted. The reload
// watcher uses this set to follow the route tree recursively.
func (t *Tree) Dirs() []string {
	out := make([]string, len(t.dirs))
	copy(out, t.dirs)
	return out
}

// Len returns the number of discovered routes.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Match resolves a request path against the tree. Static children win
// over parameter children at every step. Returns the entry, the bound
// path parameters, and whether a route matched.
func (t *Tree) Match(path string) (*Entry, map[string]string, bool) {
	node := t.root
	params := make(map[string]string)

	trimmed := strings.Trim(path, "/")
	if trimmed != "" {
		for _, seg := range strings.Split(trimmed, "/") {
			child, ok := node.Children[seg]
			if !ok {
				child = dynamicChild(node)
				if child == nil {
					return nil, nil, false
				}
				params[paramName(child.Segment)] = seg
			}
			node = child
		}
	}

	if node.Entry == nil {
		return nil, nil, false
	}
	return node.Entry, params, true
}

func dynamicChild(node *Node) *Node {
	for seg, child := range node.Children {
		if strings.HasPrefix(seg, "{") {
			return child
		}
	}
	return nil
}

func paramName(segment string) string {
	return strings.TrimSuffix(strings.TrimPrefix(segment, "{"), "}")
}
