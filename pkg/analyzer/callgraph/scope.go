package callgraph

import "strings"

// aliasTable is the flat, insertion-ordered binding table of one module.
type aliasTable struct {
	entries map[string]Alias
	order   []string
}

func (t *aliasTable) set(a Alias) {
	if _, ok := t.entries[a.Local]; !ok {
		t.order = append(t.order, a.Local)
	}
	t.entries[a.Local] = a
}

// Scope tracks the nesting label stack and the alias table of one module
// visitation. All nested classes and functions share the module's table;
// a later binding of the same local name replaces the earlier one.
type Scope struct {
	labels []string
	table  *aliasTable
}

// NewScope creates a scope seeded with the module name.
func NewScope(module string) *Scope {
	return &Scope{
		labels: []string{module},
		table:  &aliasTable{entries: make(map[string]Alias)},
	}
}

// Fork returns a scope that shares s's alias table but has its own label
// stack seeded with label. Deferred bodies are visited through a fork of
// their owning module's scope.
func (s *Scope) Fork(label string) *Scope {
	return &Scope{labels: []string{label}, table: s.table}
}

// Enter pushes a label.
func (s *Scope) Enter(label string) {
	s.labels = append(s.labels, label)
}

// Exit pops the innermost label. The seed label is never popped.
func (s *Scope) Exit() {
	if len(s.labels) > 1 {
		s.labels = s.labels[:len(s.labels)-1]
	}
}

// Current returns the innermost label, the full dotted name of the
// construct being traversed.
func (s *Scope) Current() string {
	return s.labels[len(s.labels)-1]
}

// Qualify joins name onto the current label.
func (s *Scope) Qualify(name string) string {
	return joinName(s.Current(), name)
}

// Bind records a plain binding.
func (s *Scope) Bind(local, target string) {
	s.table.set(Alias{Local: local, Target: target, Kind: AliasResolved})
}

// BindDeferred records a function binding whose body is visited on demand.
func (s *Scope) BindDeferred(local, target string, body *BodyRef) {
	s.table.set(Alias{Local: local, Target: target, Kind: AliasDeferred, Body: body})
}

// BindModule records an imported module.
func (s *Scope) BindModule(local, module string) {
	s.table.set(Alias{Local: local, Target: module, Kind: AliasModule})
}

// BindAlias records a copy of a binding from another table under local.
func (s *Scope) BindAlias(local string, a Alias) {
	a.Local = local
	s.table.set(a)
}

// Lookup returns the binding for local.
func (s *Scope) Lookup(local string) (Alias, bool) {
	a, ok := s.table.entries[local]
	return a, ok
}

// MergeAll copies every binding of other into s in other's binding order.
// Names bound in s afterwards override the merged ones.
func (s *Scope) MergeAll(other *Scope) {
	if other == nil || other.table == s.table {
		return
	}
	for _, name := range other.table.order {
		s.table.set(other.table.entries[name])
	}
}

// Aliases returns all bindings in first-binding order.
func (s *Scope) Aliases() []Alias {
	out := make([]Alias, 0, len(s.table.order))
	for _, name := range s.table.order {
		out = append(out, s.table.entries[name])
	}
	return out
}

// Len returns the number of bindings.
func (s *Scope) Len() int {
	return len(s.table.order)
}

func joinName(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	}
	return prefix + "." + name
}

func parentName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}
