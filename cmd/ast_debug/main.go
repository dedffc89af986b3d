package main

import (
	"fmt"
	"os"
	"path/filepath"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/pathtrace/flowgraph/internal/lang"
	"github.com/pathtrace/flowgraph/internal/parser"
)

// ast_debug prints the tree-sitter parse tree of a source file, used when
// adjusting the node-type lists in internal/lang.

func printAST(node *tree_sitter.Node, source []byte, indent int) {
	if node == nil {
		return
	}
	prefix := ""
	for i := 0; i < indent; i++ {
		prefix += "  "
	}
	parentKind := "nil"
	if node.Parent() != nil {
		parentKind = node.Parent().Kind()
	}
	text := string(source[node.StartByte():node.EndByte()])
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	fmt.Printf("%s%s (parent=%s) %q\n", prefix, node.Kind(), parentKind, text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(node.Child(i), source, indent+1)
	}
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: ast_debug <file.js|ts|jsx|tsx>")
		os.Exit(2)
	}
	path := os.Args[1]

	l, ok := lang.LanguageForExtension(filepath.Ext(path))
	if !ok {
		fmt.Fprintf(os.Stderr, "unsupported extension %q\n", filepath.Ext(path))
		os.Exit(2)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	tree, err := parser.Parse(l, source)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse:", err)
		os.Exit(1)
	}
	defer tree.Close()
	printAST(tree.RootNode(), source, 0)
}
