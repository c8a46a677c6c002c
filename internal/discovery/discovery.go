// Package discovery builds the route tree from a directory hierarchy.
// Each directory maps to a URL segment, bracketed directories ([id])
// to path parameters, and a route.yaml file marks a dispatchable route
// by naming a registered handler. Discovery is fail-fast: the first
// violation aborts the walk with a *util.DiscoveryError and no partial
// tree is returned.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/vyrodovalexey/avrouter/internal/binding"
	"github.com/vyrodovalexey/avrouter/internal/handler"
	"github.com/vyrodovalexey/avrouter/internal/observability"
	"github.com/vyrodovalexey/avrouter/internal/util"
)

// paramNamePattern constrains path parameter names. It rejects empty
// and nested brackets since neither bracket is in the class.
var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// denylist names directories pruned silently during the walk. Names
// starting with an underscore are pruned as well.
var denylist = map[string]struct{}{
	".git":         {},
	".svn":         {},
	".hg":          {},
	".idea":        {},
	".vscode":      {},
	"node_modules": {},
	"__pycache__":  {},
	"testdata":     {},
}

var routeFileExtensions = map[string]struct{}{
	".yaml": {},
	".yml":  {},
}

// Option configures a discovery walk.
type Option func(*discoverer)

// WithLogger sets the logger used during the walk.
func WithLogger(logger observability.Logger) Option {
	return func(d *discoverer) {
		d.logger = logger
	}
}

type discoverer struct {
	registry *handler.Registry
	logger   observability.Logger

	resolvedRoot string
	patterns     map[string]string // normalized pattern -> source dir
	entries      []*Entry
	dirs         []string
}

// Discover walks the directory tree rooted at root and builds the
// route tree. The registry resolves handler names found in route
// files.
func Discover(root string, reg *handler.Registry, opts ...Option) (*Tree, error) {
	d := &discoverer{
		registry: reg,
		logger:   observability.NopLogger(),
		patterns: make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, util.NewDiscoveryError(util.DiscoveryPathEscape, root, "", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, util.NewDiscoveryError(util.DiscoveryPathEscape, root, "",
			fmt.Errorf("resolve root: %w", err))
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, util.NewDiscoveryError(util.DiscoveryPathEscape, root, "", err)
	}
	if !info.IsDir() {
		return nil, util.NewDiscoveryError(util.DiscoveryPathEscape, root, "",
			errors.New("root is not a directory"))
	}
	d.resolvedRoot = resolved

	rootNode := &Node{
		Segment:  "",
		Children: make(map[string]*Node),
		Dir:      resolved,
	}
	if err := d.walk(resolved, rootNode, "/", nil); err != nil {
		return nil, err
	}

	sort.Slice(d.entries, func(i, j int) bool {
		return d.entries[i].Pattern < d.entries[j].Pattern
	})
	sort.Strings(d.dirs)

	d.logger.Info("route discovery complete",
		observability.String("root", resolved),
		observability.Int("routes", len(d.entries)),
	)

	return &Tree{root: rootNode, entries: d.entries, dirs: d.dirs}, nil
}

// walk processes one directory: containment check, route file, then
// child directories in lexical order.
func (d *discoverer) walk(dir string, node *Node, pattern string, params []string) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return util.NewDiscoveryError(util.DiscoveryPathEscape, dir, pattern, err)
	}
	if !within(resolved, d.resolvedRoot) {
		return util.NewDiscoveryError(util.DiscoveryPathEscape, dir, pattern,
			fmt.Errorf("resolves to %s outside the route root", resolved))
	}
	d.dirs = append(d.dirs, dir)

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return util.NewDiscoveryError(util.DiscoveryPathEscape, dir, pattern, err)
	}

	var routePath string
	for _, ent := range dirEntries {
		if isDirEntry(dir, ent) {
			continue
		}
		name := ent.Name()
		ext := filepath.Ext(name)
		if strings.TrimSuffix(name, ext) != "route" {
			continue
		}
		if _, ok := routeFileExtensions[ext]; !ok {
			return util.NewDiscoveryError(util.DiscoveryInvalidExtension,
				filepath.Join(dir, name), pattern,
				fmt.Errorf("route file extension %q is not allowed", ext))
		}
		if routePath != "" {
			return util.NewDiscoveryError(util.DiscoveryDuplicateRoute,
				filepath.Join(dir, name), pattern,
				errors.New("directory holds more than one route file"))
		}
		routePath = filepath.Join(dir, name)
	}

	if routePath != "" {
		entry, err := d.buildEntry(routePath, pattern, params, dir)
		if err != nil {
			return err
		}
		normalized := normalizePattern(pattern)
		if prev, exists := d.patterns[normalized]; exists {
			return util.NewDiscoveryError(util.DiscoveryDuplicateRoute, dir, pattern,
				fmt.Errorf("pattern already defined by %s", prev))
		}
		d.patterns[normalized] = dir
		d.entries = append(d.entries, entry)
		node.Entry = entry

		d.logger.Debug("route discovered",
			observability.String("pattern", pattern),
			observability.String("handler", entry.HandlerName),
			observability.String("dir", dir),
		)
	}

	paramChild := ""
	for _, ent := range dirEntries {
		if !isDirEntry(dir, ent) {
			continue
		}
		name := ent.Name()
		if _, denied := denylist[name]; denied || strings.HasPrefix(name, "_") {
			continue
		}

		childDir := filepath.Join(dir, name)
		segment := name
		childParams := params

		if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
			pname := name[1 : len(name)-1]
			if !paramNamePattern.MatchString(pname) {
				return util.NewDiscoveryError(util.DiscoveryInvalidParam, childDir, pattern,
					fmt.Errorf("invalid parameter name %q", pname))
			}
			for _, existing := range params {
				if existing == pname {
					return util.NewDiscoveryError(util.DiscoveryInvalidParam, childDir, pattern,
						fmt.Errorf("parameter %q shadows an ancestor parameter", pname))
				}
			}
			if paramChild != "" {
				return util.NewDiscoveryError(util.DiscoveryDuplicateRoute, childDir, pattern,
					fmt.Errorf("parameter directory conflicts with sibling %q", paramChild))
			}
			paramChild = name
			segment = "{" + pname + "}"
			childParams = append(append([]string{}, params...), pname)
		} else if strings.ContainsAny(name, "[]") {
			return util.NewDiscoveryError(util.DiscoveryInvalidParam, childDir, pattern,
				fmt.Errorf("directory name %q misuses brackets", name))
		}

		child := &Node{
			Segment:  segment,
			Children: make(map[string]*Node),
			Dir:      childDir,
		}
		node.Children[segment] = child

		if err := d.walk(childDir, child, joinPattern(pattern, segment), childParams); err != nil {
			return err
		}
	}

	return nil
}

// buildEntry parses a route file, resolves its handler, probes verb
// capabilities, and compiles the handler's parameter specs.
func (d *discoverer) buildEntry(routePath, pattern string, params []string, dir string) (*Entry, error) {
	rf, err := parseRouteFile(routePath)
	if err != nil {
		return nil, util.NewDiscoveryError(util.DiscoveryInvalidHandler, routePath, pattern, err)
	}

	h, err := d.registry.New(rf.Handler)
	if err != nil {
		return nil, util.NewDiscoveryError(util.DiscoveryInvalidHandler, routePath, pattern, err)
	}

	calls := handler.Methods(h)
	if len(calls) == 0 {
		return nil, util.NewDiscoveryError(util.DiscoveryInvalidHandler, routePath, pattern,
			fmt.Errorf("handler %q implements no HTTP method", rf.Handler))
	}

	methods := make(map[string]MethodConfig, len(calls))
	for verb := range calls {
		methods[verb] = MethodConfig{}
	}
	for verb, mc := range rf.Methods {
		upper := strings.ToUpper(verb)
		if _, ok := calls[upper]; !ok {
			return nil, util.NewDiscoveryError(util.DiscoveryInvalidHandler, routePath, pattern,
				fmt.Errorf("handler %q does not implement configured method %s", rf.Handler, upper))
		}
		if err := mc.validate(upper); err != nil {
			return nil, util.NewDiscoveryError(util.DiscoveryInvalidHandler, routePath, pattern, err)
		}
		methods[upper] = mc
	}

	specs := handler.Specs(h)
	bound := make(map[string]*binding.BoundSpecs, len(specs))
	for verb, verbSpecs := range specs {
		upper := strings.ToUpper(verb)
		if _, ok := calls[upper]; !ok {
			return nil, util.NewDiscoveryError(util.DiscoveryInvalidHandler, routePath, pattern,
				fmt.Errorf("handler %q declares parameter specs for unimplemented method %s", rf.Handler, upper))
		}
		bs, err := binding.Compile(verbSpecs)
		if err != nil {
			return nil, util.NewDiscoveryError(util.DiscoveryInvalidHandler, routePath, pattern, err)
		}
		bound[upper] = bs
	}

	return &Entry{
		Pattern:     pattern,
		HandlerName: rf.Handler,
		Handler:     h,
		Methods:     methods,
		Calls:       calls,
		Specs:       specs,
		Bound:       bound,
		Tag:         rf.Tag,
		Params:      params,
		Dir:         dir,
	}, nil
}

func joinPattern(parent, segment string) string {
	if parent == "/" {
		return "/" + segment
	}
	return parent + "/" + segment
}

// normalizePattern blanks parameter names so that sibling parameter
// directories with different names still collide.
func normalizePattern(pattern string) string {
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			segments[i] = "{}"
		}
	}
	return strings.Join(segments, "/")
}

// isDirEntry reports whether the entry is a directory, following
// symlinks so that linked directories are walked and checked for
// containment rather than skipped.
func isDirEntry(dir string, ent os.DirEntry) bool {
	if ent.IsDir() {
		return true
	}
	if ent.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, ent.Name()))
	return err == nil && info.IsDir()
}

func within(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}
