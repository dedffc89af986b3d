package pipeline

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/pathtrace/flowgraph/internal/discover"
	"github.com/pathtrace/flowgraph/internal/graph"
	"github.com/pathtrace/flowgraph/internal/lang"
	"github.com/pathtrace/flowgraph/internal/parser"
)

// callSite records one call expression found inside a node's body.
type callSite struct {
	Callee string // identifier or full property-access chain
	Line   int
}

// nodeRecord pairs a built graph node with the raw call sites the linker
// resolves later.
type nodeRecord struct {
	Node  *graph.Node
	Calls []callSite
}

// fileResult is the output of one pure file parse. No shared state.
type fileResult struct {
	File    discover.FileInfo
	Records []*nodeRecord
	Err     error
}

// passBuild parses every file in parallel and merges the per-file results
// into the graph sequentially, preserving file order so node iteration is
// deterministic across runs.
func (p *Pipeline) passBuild(files []discover.FileInfo) error {
	results := make([]*fileResult, len(files))
	numWorkers := runtime.NumCPU()
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	g, gctx := errgroup.WithContext(p.ctx)
	g.SetLimit(numWorkers)
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = buildFile(f, p.detector)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Err != nil {
			// Per-file failures are non-fatal: skip the file, keep the run.
			slog.Warn("build.file.err", "path", r.File.RelPath, "err", r.Err)
			continue
		}
		for _, rec := range r.Records {
			p.Graph.AddNode(rec.Node)
			p.registry.Register(rec.Node)
			if len(rec.Calls) > 0 {
				p.calls[rec.Node.ID] = rec.Calls
			}
		}
	}
	return nil
}

// buildFile reads and parses one file and extracts a nodeRecord per
// callable unit. Pure: no graph or registry access.
func buildFile(f discover.FileInfo, detector *ValidationDetector) *fileResult {
	result := &fileResult{File: f}

	source, err := os.ReadFile(f.Path)
	if err != nil {
		result.Err = err
		return result
	}
	source = stripBOM(source)

	tree, err := parser.Parse(f.Language, source)
	if err != nil {
		result.Err = err
		return result
	}
	defer tree.Close()

	spec := lang.ForLanguage(f.Language)
	if spec == nil {
		return result
	}
	funcTypes := toSet(spec.FunctionNodeTypes)

	parser.Walk(tree.RootNode(), func(node *tree_sitter.Node) bool {
		if funcTypes[node.Kind()] {
			if rec := extractCallable(node, source, f, spec, detector); rec != nil {
				result.Records = append(result.Records, rec)
			}
		}
		// Keep walking: nested declarations become their own nodes.
		return true
	})

	return result
}

// extractCallable builds one graph node from a function-like declaration.
func extractCallable(
	node *tree_sitter.Node, source []byte, f discover.FileInfo,
	spec *lang.LanguageSpec, detector *ValidationDetector,
) *nodeRecord {
	name := callableName(node, source)
	if name == "" {
		name = "anonymous"
	}

	line := safeRowToLine(node.StartPosition().Row)
	n := &graph.Node{
		ID:   nodeID(f.RelPath, name, line),
		Name: name,
		Kind: classifyKind(f.RelPath),
		File: f.RelPath,
		Line: line,
		Performance: graph.Performance{
			Complexity: 1,
		},
	}

	n.Inputs = extractInputs(node, source)
	n.Outputs = extractOutputs(node, source)

	body := node.ChildByFieldName("body")
	if body != nil {
		rec := &nodeRecord{Node: n}
		scanBody(node, body, source, spec, n, rec)
		if detector != nil && len(n.Inputs) > 0 {
			detector.MarkValidated(parser.NodeText(body, source), n.Inputs)
		}
		return rec
	}
	return &nodeRecord{Node: n}
}

// nodeID derives a stable id from (file, name, line). The id embeds the
// name so textual callee matching can fall back to an id-contains check.
func nodeID(file, name string, line int) string {
	h := xxh3.HashString(fmt.Sprintf("%s|%s|%d", file, name, line))
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (8 * (7 - i)))
	}
	return name + "-" + hex.EncodeToString(buf[:])[:10]
}

// callableName resolves the declared name of a function-like node.
// Arrow functions and function expressions take the name of the binding
// they are assigned to: const x = () => {}, obj = { key: function() {} },
// class fields, and plain assignments.
func callableName(node *tree_sitter.Node, source []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return parser.NodeText(nameNode, source)
	}

	parent := node.Parent()
	if parent == nil {
		return ""
	}
	switch parent.Kind() {
	case "variable_declarator":
		if nameNode := parent.ChildByFieldName("name"); nameNode != nil {
			return parser.NodeText(nameNode, source)
		}
	case "pair":
		if keyNode := parent.ChildByFieldName("key"); keyNode != nil {
			return strings.Trim(parser.NodeText(keyNode, source), "\"'`")
		}
	case "assignment_expression":
		if leftNode := parent.ChildByFieldName("left"); leftNode != nil {
			left := parser.NodeText(leftNode, source)
			if idx := strings.LastIndex(left, "."); idx >= 0 {
				left = left[idx+1:]
			}
			return left
		}
	case "field_definition", "public_field_definition":
		if propNode := parent.ChildByFieldName("property"); propNode != nil {
			return parser.NodeText(propNode, source)
		}
		if nameNode := parent.ChildByFieldName("name"); nameNode != nil {
			return parser.NodeText(nameNode, source)
		}
	}
	return ""
}

// classifyKind maps a file path to a node kind.
// Heuristics: /api/ path segments → api; UI extensions → component;
// db/database segments → database; vendored trees → external.
func classifyKind(relPath string) graph.NodeKind {
	lower := strings.ToLower(relPath)
	segs := strings.Split(lower, "/")
	dirs := segs[:len(segs)-1]

	for _, s := range dirs {
		if s == "node_modules" || s == "vendor" {
			return graph.KindExternal
		}
	}
	for _, s := range dirs {
		if s == "api" || s == "apis" {
			return graph.KindAPI
		}
	}
	if strings.HasSuffix(lower, ".tsx") || strings.HasSuffix(lower, ".jsx") {
		return graph.KindComponent
	}
	for _, s := range dirs {
		if s == "db" || strings.Contains(s, "database") {
			return graph.KindDatabase
		}
	}
	return graph.KindFunction
}

// extractInputs reads the declared parameter list.
func extractInputs(node *tree_sitter.Node, source []byte) []graph.Param {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		// Bare-identifier arrow parameter: x => ...
		if single := node.ChildByFieldName("parameter"); single != nil {
			return []graph.Param{{Name: parser.NodeText(single, source), Required: true}}
		}
		return nil
	}

	var inputs []graph.Param
	for i := uint(0); i < params.NamedChildCount(); i++ {
		child := params.NamedChild(i)
		if child == nil {
			continue
		}
		if prm, ok := extractParam(child, source); ok {
			inputs = append(inputs, prm)
		}
	}
	return inputs
}

// extractParam converts one parameter AST node into a Param.
func extractParam(child *tree_sitter.Node, source []byte) (graph.Param, bool) {
	switch child.Kind() {
	case "identifier", "object_pattern", "array_pattern":
		return graph.Param{Name: parser.NodeText(child, source), Required: true}, true

	case "assignment_pattern":
		// x = default → optional
		prm := graph.Param{Required: false}
		if left := child.ChildByFieldName("left"); left != nil {
			prm.Name = parser.NodeText(left, source)
		}
		return prm, prm.Name != ""

	case "rest_pattern":
		return graph.Param{Name: parser.NodeText(child, source), Required: false}, true

	case "required_parameter", "optional_parameter":
		prm := graph.Param{Required: child.Kind() == "required_parameter"}
		if pat := child.ChildByFieldName("pattern"); pat != nil {
			prm.Name = parser.NodeText(pat, source)
		}
		if typeAnn := findChildByKind(child, "type_annotation"); typeAnn != nil {
			prm.DeclaredType = cleanTypeText(parser.NodeText(typeAnn, source))
		}
		// A declared default makes a required parameter optional.
		if child.ChildByFieldName("value") != nil {
			prm.Required = false
		}
		return prm, prm.Name != ""
	}
	return graph.Param{}, false
}

// extractOutputs reads the declared return type, falling back to the
// presence of a value-carrying return statement.
func extractOutputs(node *tree_sitter.Node, source []byte) []graph.Param {
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		return []graph.Param{{
			Name:         "return",
			DeclaredType: cleanTypeText(parser.NodeText(rt, source)),
			Required:     true,
		}}
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	// Expression-bodied arrow: x => expr always yields a value.
	if body.Kind() != "statement_block" {
		return []graph.Param{{Name: "return", Required: true}}
	}
	found := false
	walkOwnBody(node, body, func(n *tree_sitter.Node) {
		if n.Kind() == "return_statement" && n.NamedChildCount() > 0 {
			found = true
		}
	})
	if found {
		return []graph.Param{{Name: "return", Required: true}}
	}
	return nil
}

// scanBody walks one node's body, counting performance signals, recording
// call sites, and collecting throw/catch sites. Nested callables are
// excluded; they get their own records.
func scanBody(
	fn *tree_sitter.Node, body *tree_sitter.Node, source []byte,
	spec *lang.LanguageSpec, n *graph.Node, rec *nodeRecord,
) {
	loopTypes := toSet(spec.LoopNodeTypes)
	condTypes := toSet(spec.ConditionalNodeTypes)
	throwTypes := toSet(spec.ThrowNodeTypes)
	catchTypes := toSet(spec.CatchNodeTypes)
	awaitTypes := toSet(spec.AwaitNodeTypes)
	callTypes := toSet(spec.CallNodeTypes)

	walkOwnBody(fn, body, func(node *tree_sitter.Node) {
		kind := node.Kind()
		switch {
		case loopTypes[kind]:
			n.Performance.Loops++
			n.Performance.Complexity++

		case condTypes[kind]:
			n.Performance.Complexity++

		case awaitTypes[kind]:
			n.Performance.AsyncOps++

		case throwTypes[kind]:
			n.Errors = append(n.Errors, graph.ErrorSite{
				Kind:    graph.ErrorThrow,
				Handled: insideCatchScope(node, fn, spec),
			})

		case catchTypes[kind]:
			n.Errors = append(n.Errors, graph.ErrorSite{
				Kind:    graph.ErrorCatch,
				Handled: true,
			})

		case callTypes[kind]:
			callee := calleeText(node, source)
			if callee == "" {
				return
			}
			rec.Calls = append(rec.Calls, callSite{
				Callee: callee,
				Line:   safeRowToLine(node.StartPosition().Row),
			})
			classifyCall(callee, n)
		}
	})
}

// walkOwnBody visits every descendant of body except subtrees rooted at a
// nested function-like node.
func walkOwnBody(fn *tree_sitter.Node, body *tree_sitter.Node, visit func(*tree_sitter.Node)) {
	parser.Walk(body, func(node *tree_sitter.Node) bool {
		if node.Id() != body.Id() && isFunctionLike(node.Kind()) {
			return false
		}
		if node.Id() != body.Id() {
			visit(node)
		}
		return true
	})
}

func isFunctionLike(kind string) bool {
	switch kind {
	case "function_declaration", "generator_function_declaration",
		"function_expression", "arrow_function", "method_definition":
		return true
	}
	return false
}

// calleeText extracts the textual callee: an identifier or a full
// property-access chain like db.users.findMany.
func calleeText(call *tree_sitter.Node, source []byte) string {
	fnNode := call.ChildByFieldName("function")
	if fnNode == nil {
		return ""
	}
	switch fnNode.Kind() {
	case "identifier", "member_expression":
		return parser.NodeText(fnNode, source)
	case "parenthesized_expression", "call_expression":
		// (await x)() or chained calls carry no resolvable name.
		return ""
	}
	return parser.NodeText(fnNode, source)
}

// apiTokens and dbTokens drive the textual call classification.
// Matching is substring, case-insensitive, over the last chain segment.
var (
	apiTokens = []string{"fetch", "axios", "request", "http"}
	dbTokens  = []string{"query", "find", "create", "update", "delete", "insert", "upsert", "save", "aggregate", "count"}
)

// classifyCall increments the caller's api/db counters from callee tokens.
func classifyCall(callee string, n *graph.Node) {
	name := callee
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	lower := strings.ToLower(name)
	chain := strings.ToLower(callee)

	for _, tok := range apiTokens {
		if strings.Contains(lower, tok) || strings.HasPrefix(chain, tok+".") {
			n.Performance.APICalls++
			return
		}
	}
	for _, tok := range dbTokens {
		if strings.Contains(lower, tok) {
			n.Performance.DBCalls++
			return
		}
	}
}

// insideCatchScope reports whether a throw is lexically inside a try block
// that has a catch clause, climbing no further than the enclosing function.
func insideCatchScope(node *tree_sitter.Node, fn *tree_sitter.Node, spec *lang.LanguageSpec) bool {
	tryTypes := toSet(spec.TryNodeTypes)
	catchTypes := toSet(spec.CatchNodeTypes)

	for cur := node.Parent(); cur != nil && cur.Id() != fn.Id(); cur = cur.Parent() {
		if !tryTypes[cur.Kind()] {
			continue
		}
		for i := uint(0); i < cur.NamedChildCount(); i++ {
			child := cur.NamedChild(i)
			if child != nil && catchTypes[child.Kind()] {
				return true
			}
		}
	}
	return false
}

// cleanTypeText strips the leading ":" of a type annotation.
func cleanTypeText(text string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), ":"))
}

func findChildByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func safeRowToLine(row uint) int {
	const maxInt = int(^uint(0) >> 1)
	if row > uint(maxInt-1) {
		return maxInt
	}
	return int(row) + 1
}

func stripBOM(source []byte) []byte {
	if len(source) >= 3 && source[0] == 0xEF && source[1] == 0xBB && source[2] == 0xBF {
		return source[3:]
	}
	return source
}
