package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is returned when the source text is not valid Python.
var ErrSyntax = errors.New("syntax error")

// ErrUnsupportedFile is returned when a path does not look like Python source.
var ErrUnsupportedFile = errors.New("unsupported file")

// Python node types the call-graph visitor dispatches on.
const (
	NodeModule             = "module"
	NodeImport             = "import_statement"
	NodeImportFrom         = "import_from_statement"
	NodeFutureImport       = "future_import_statement"
	NodeDottedName         = "dotted_name"
	NodeAliasedImport      = "aliased_import"
	NodeRelativeImport     = "relative_import"
	NodeImportPrefix       = "import_prefix"
	NodeWildcardImport     = "wildcard_import"
	NodeClassDefinition    = "class_definition"
	NodeFunctionDefinition = "function_definition"
	NodeDecoratedDef       = "decorated_definition"
	NodeDecorator          = "decorator"
	NodeCall               = "call"
	NodeIf                 = "if_statement"
	NodeIdentifier         = "identifier"
	NodeAttribute          = "attribute"
	NodeBlock              = "block"
	NodeComment            = "comment"
)

// Parser wraps a tree-sitter parser configured for Python.
// A Parser is not safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed tree and the source it was built from.
type ParseResult struct {
	Tree   *sitter.Tree
	Source []byte
	Path   string
}

// New creates a new parser instance.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

// ParseFile reads and parses a Python file from disk.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	if !IsPythonSource(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return p.Parse(source, path)
}

// Parse parses Python source. Trees containing error or missing nodes are
// rejected with ErrSyntax; tree-sitter always recovers, so the check is explicit.
func (p *Parser) Parse(source []byte, path string) (*ParseResult, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		line := firstErrorLine(root)
		tree.Close()
		return nil, fmt.Errorf("%w: %s:%d", ErrSyntax, path, line)
	}

	return &ParseResult{
		Tree:   tree,
		Source: source,
		Path:   path,
	}, nil
}

// Root returns the module node of the parse tree.
func (r *ParseResult) Root() *sitter.Node {
	return r.Tree.RootNode()
}

// Text returns the source text for a node of this tree.
func (r *ParseResult) Text(node *sitter.Node) string {
	return GetNodeText(node, r.Source)
}

// Close releases the tree.
func (r *ParseResult) Close() {
	if r != nil && r.Tree != nil {
		r.Tree.Close()
		r.Tree = nil
	}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// IsPythonSource reports whether path has a Python source extension.
func IsPythonSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw":
		return true
	default:
		return false
	}
}

// firstErrorLine returns the 1-based line of the first ERROR or missing node.
func firstErrorLine(root *sitter.Node) int {
	line := int(root.StartPoint().Row) + 1
	found := false
	Walk(root, nil, func(node *sitter.Node, _ []byte) bool {
		if found {
			return false
		}
		if node.IsError() || node.IsMissing() {
			line = int(node.StartPoint().Row) + 1
			found = true
			return false
		}
		return node.HasError()
	})
	return line
}

// NodeVisitor is a function that visits AST nodes.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// Walk traverses the AST calling visitor for each node.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}

	if !visitor(node, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// FindNodesByType returns all nodes of a specific type.
func FindNodesByType(root *sitter.Node, source []byte, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	Walk(root, source, func(node *sitter.Node, _ []byte) bool {
		if node.Type() == nodeType {
			results = append(results, node)
		}
		return true
	})
	return results
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// NamedChildren returns the named children of node in source order.
func NamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	n := int(node.NamedChildCount())
	children := make([]*sitter.Node, 0, n)
	for i := range n {
		children = append(children, node.NamedChild(i))
	}
	return children
}
