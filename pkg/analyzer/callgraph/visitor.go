package callgraph

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/howitworks/pkg/parser"
)

type frameKind uint8

const (
	frameNode frameKind = iota
	frameEnter
	frameExit
)

// frame is one worklist item: a node to visit or a scope transition.
type frame struct {
	kind  frameKind
	node  *sitter.Node
	label string
}

// visitor walks one body of one module. Top-level module traversal and
// every forced function body each get their own visitor.
type visitor struct {
	s     *Session
	mod   *Module
	scope *Scope
	src   []byte
}

func newVisitor(s *Session, mod *Module, scope *Scope) *visitor {
	return &visitor{s: s, mod: mod, scope: scope, src: mod.tree.Source}
}

// walk traverses root depth-first in pre-order using an explicit worklist,
// so deeply nested source does not grow the goroutine stack.
func (v *visitor) walk(root *sitter.Node) {
	if root == nil {
		return
	}
	stack := []frame{{kind: frameNode, node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch f.kind {
		case frameEnter:
			v.scope.Enter(f.label)
		case frameExit:
			v.scope.Exit()
		default:
			stack = v.visit(f.node, stack)
		}
	}
}

func (v *visitor) visit(n *sitter.Node, stack []frame) []frame {
	switch n.Type() {
	case parser.NodeImport:
		v.visitImport(n)
		return stack
	case parser.NodeImportFrom:
		v.visitImportFrom(n)
		return stack
	case parser.NodeFutureImport, parser.NodeComment:
		return stack
	case parser.NodeClassDefinition:
		return v.visitClass(n, stack)
	case parser.NodeFunctionDefinition:
		return v.visitFunction(n, stack)
	case parser.NodeCall:
		v.visitCall(n)
	}
	return pushChildren(stack, n)
}

// pushChildren schedules the named children of n so they pop in source order.
func pushChildren(stack []frame, n *sitter.Node) []frame {
	if n == nil {
		return stack
	}
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		stack = append(stack, frame{kind: frameNode, node: n.NamedChild(i)})
	}
	return stack
}

func pushNode(stack []frame, n *sitter.Node) []frame {
	if n == nil {
		return stack
	}
	return append(stack, frame{kind: frameNode, node: n})
}

func (v *visitor) text(n *sitter.Node) string {
	return parser.GetNodeText(n, v.src)
}

// visitClass binds the class, visits its bases in the enclosing scope and
// its body under the class label.
func (v *visitor) visitClass(n *sitter.Node, stack []frame) []frame {
	name := v.text(n.ChildByFieldName("name"))
	if name == "" {
		return pushChildren(stack, n)
	}
	label := v.scope.Qualify(name)
	v.scope.Bind(name, label)

	stack = append(stack, frame{kind: frameExit})
	stack = pushChildren(stack, n.ChildByFieldName("body"))
	stack = append(stack, frame{kind: frameEnter, label: label})
	stack = pushNode(stack, n.ChildByFieldName("superclasses"))
	return stack
}

// visitFunction binds the function as deferred. Parameter defaults and the
// return annotation are evaluated at definition time, the body is not.
func (v *visitor) visitFunction(n *sitter.Node, stack []frame) []frame {
	name := v.text(n.ChildByFieldName("name"))
	if name == "" {
		return stack
	}
	label := v.scope.Qualify(name)
	ref := v.s.registerBody(v.mod, label, n)
	v.scope.BindDeferred(name, label, ref)

	stack = pushNode(stack, n.ChildByFieldName("return_type"))
	stack = pushNode(stack, n.ChildByFieldName("parameters"))
	return stack
}

func (v *visitor) visitCall(n *sitter.Node) {
	target, body := v.resolveCallee(n.ChildByFieldName("function"))
	if target == "" {
		return
	}
	v.emit(target)
	if body != nil {
		v.s.force(body)
	}
}

// resolveCallee returns the call target and, when the target is a known
// function, the body to force.
func (v *visitor) resolveCallee(fn *sitter.Node) (string, *BodyRef) {
	if fn == nil {
		return "", nil
	}

	switch fn.Type() {
	case parser.NodeIdentifier:
		name := v.text(fn)
		a, ok := v.scope.Lookup(name)
		if !ok {
			return name, nil
		}
		if a.Kind == AliasDeferred {
			return a.Target, a.Body
		}
		return a.Target, nil

	case parser.NodeAttribute:
		parts, ok := v.dottedParts(fn)
		if !ok {
			return "", nil
		}
		// The head names a module, class or value; it is not being called.
		if a, ok := v.scope.Lookup(parts[0]); ok {
			parts[0] = a.Target
		}
		target := strings.Join(parts, ".")
		return target, v.s.bodyNamed(target)
	}

	return "", nil
}

// dottedParts flattens an attribute chain made only of identifiers.
func (v *visitor) dottedParts(n *sitter.Node) ([]string, bool) {
	var rev []string
	for n != nil {
		switch n.Type() {
		case parser.NodeIdentifier:
			rev = append(rev, v.text(n))
			parts := make([]string, len(rev))
			for i, p := range rev {
				parts[len(rev)-1-i] = p
			}
			return parts, true
		case parser.NodeAttribute:
			rev = append(rev, v.text(n.ChildByFieldName("attribute")))
			n = n.ChildByFieldName("object")
		default:
			return nil, false
		}
	}
	return nil, false
}

func (v *visitor) emit(target string) {
	c := Call{Context: v.scope.Current(), Target: target}
	v.s.calls = append(v.s.calls, c)
	v.mod.Calls = append(v.mod.Calls, c)
}

// visitImport handles "import a.b.c" and "import a.b as x".
func (v *visitor) visitImport(n *sitter.Node) {
	for _, child := range parser.NamedChildren(n) {
		switch child.Type() {
		case parser.NodeDottedName:
			name := dottedName(child, v.src)
			if name == "" {
				continue
			}
			v.s.importModule(name, v.mod.Depth+1)
			head := name
			if i := strings.IndexByte(name, '.'); i >= 0 {
				head = name[:i]
			}
			v.scope.BindModule(head, head)

		case parser.NodeAliasedImport:
			name := dottedName(child.ChildByFieldName("name"), v.src)
			local := v.text(child.ChildByFieldName("alias"))
			if name == "" || local == "" {
				continue
			}
			v.bindImported(local, name, v.s.importModule(name, v.mod.Depth+1))
		}
	}
}

// visitImportFrom handles "from m import n [as k]", "from m import *" and
// their relative forms.
func (v *visitor) visitImportFrom(n *sitter.Node) {
	modNode := n.ChildByFieldName("module_name")
	if modNode == nil {
		return
	}
	from, ok := v.importSource(modNode)
	if !ok {
		v.s.logger.Debug("relative import beyond top-level package",
			"module", v.mod.Name, "import", v.text(modNode))
		return
	}

	for _, child := range parser.NamedChildren(n) {
		if child.StartByte() == modNode.StartByte() && child.EndByte() == modNode.EndByte() {
			continue
		}

		switch child.Type() {
		case parser.NodeWildcardImport:
			if from == "" {
				continue
			}
			if mod := v.s.importModule(from, v.mod.Depth+1); mod != nil && mod.Name == from {
				v.scope.MergeAll(mod.Scope)
			}

		case parser.NodeDottedName:
			member := dottedName(child, v.src)
			if member == "" {
				continue
			}
			full := joinName(from, member)
			v.bindImported(member, full, v.s.importModule(full, v.mod.Depth+1))

		case parser.NodeAliasedImport:
			member := dottedName(child.ChildByFieldName("name"), v.src)
			local := v.text(child.ChildByFieldName("alias"))
			if member == "" || local == "" {
				continue
			}
			full := joinName(from, member)
			v.bindImported(local, full, v.s.importModule(full, v.mod.Depth+1))
		}
	}
}

// bindImported binds local to the imported name full. When full is a member
// of mod that mod's table binds, the binding (and any deferred body) is
// carried over.
func (v *visitor) bindImported(local, full string, mod *Module) {
	switch {
	case mod == nil:
		v.scope.Bind(local, full)
	case mod.Name == full:
		v.scope.BindModule(local, full)
	default:
		member := strings.TrimPrefix(full, mod.Name+".")
		if mod.Scope != nil && !strings.Contains(member, ".") {
			if a, ok := mod.Scope.Lookup(member); ok {
				v.scope.BindAlias(local, a)
				return
			}
		}
		v.scope.Bind(local, full)
	}
}

// importSource returns the absolute module name of a from-import source.
func (v *visitor) importSource(n *sitter.Node) (string, bool) {
	if n.Type() != parser.NodeRelativeImport {
		return dottedName(n, v.src), true
	}

	dots := 0
	rest := ""
	for _, child := range parser.NamedChildren(n) {
		switch child.Type() {
		case parser.NodeImportPrefix:
			dots = strings.Count(v.text(child), ".")
		case parser.NodeDottedName:
			rest = dottedName(child, v.src)
		}
	}
	return resolveRelative(v.mod.Name, v.mod.IsPackage, dots, rest)
}

// resolveRelative applies Python's relative import rules: one dot names the
// current package, each further dot its parent.
func resolveRelative(module string, isPackage bool, dots int, rest string) (string, bool) {
	pkg := module
	if !isPackage {
		pkg = parentName(module)
	}
	for i := 1; i < dots; i++ {
		if pkg == "" {
			return "", false
		}
		pkg = parentName(pkg)
	}
	return joinName(pkg, rest), true
}

// dottedName joins the identifiers of a dotted_name node.
func dottedName(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	if n.Type() == parser.NodeIdentifier {
		return parser.GetNodeText(n, src)
	}
	var parts []string
	for _, child := range parser.NamedChildren(n) {
		if child.Type() == parser.NodeIdentifier {
			parts = append(parts, parser.GetNodeText(child, src))
		}
	}
	return strings.Join(parts, ".")
}
