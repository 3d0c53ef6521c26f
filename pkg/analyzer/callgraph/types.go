package callgraph

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/howitworks/internal/locator"
	"github.com/panbanda/howitworks/pkg/parser"
)

// Call is a directed edge from the construct whose body contains a call
// expression to the resolved target of that call.
type Call struct {
	Context string `json:"context" toon:"context"`
	Target  string `json:"target" toon:"target"`
}

// String returns "context -> target".
func (c Call) String() string {
	return c.Context + " -> " + c.Target
}

// AliasKind tags the variant of an Alias.
type AliasKind uint8

const (
	// AliasResolved is a plain name binding.
	AliasResolved AliasKind = iota
	// AliasDeferred binds a function whose body is visited on first call.
	AliasDeferred
	// AliasModule binds an imported module.
	AliasModule
)

// String returns the kind name.
func (k AliasKind) String() string {
	switch k {
	case AliasDeferred:
		return "deferred"
	case AliasModule:
		return "module"
	default:
		return "resolved"
	}
}

// Alias binds a local name to a fully qualified target.
type Alias struct {
	Local  string
	Target string
	Kind   AliasKind
	// Body is set for AliasDeferred only.
	Body *BodyRef
}

// BodyRef points at a function definition inside a tree owned by a Module
// record. It does not own the tree.
type BodyRef struct {
	ID     uint32
	Module string
	Name   string
	node   *sitter.Node
}

// State is the lifecycle of a module record within a session.
type State uint8

const (
	StateNotVisited State = iota
	StateInProgress
	StateCompleted
	StateUnresolvable
	StateFailed
	// StateTruncated marks a module skipped by the depth limit. It may
	// still be visited later through a shorter import path.
	StateTruncated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in-progress"
	case StateCompleted:
		return "completed"
	case StateUnresolvable:
		return "unresolvable"
	case StateFailed:
		return "failed"
	case StateTruncated:
		return "depth-limited"
	default:
		return "not-visited"
	}
}

// MarshalText lets State render as its name in JSON and TOON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateNotVisited; st <= StateTruncated; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown module state %q", text)
}

// Module is the record of one module referenced during a session.
type Module struct {
	Name      string         `json:"name" toon:"name"`
	Path      string         `json:"path,omitempty" toon:"path,omitempty"`
	IsPackage bool           `json:"is_package,omitempty" toon:"is_package,omitempty"`
	State     State          `json:"state" toon:"state"`
	Reason    locator.Reason `json:"reason,omitempty" toon:"reason,omitempty"`
	Error     string         `json:"error,omitempty" toon:"error,omitempty"`
	Depth     int            `json:"depth" toon:"depth"`
	// Stripped lists requested names that only resolved to this module
	// after trailing segments were removed.
	Stripped []string `json:"stripped,omitempty" toon:"stripped,omitempty"`
	// Digest is the blake3 hex digest of the module source.
	Digest string `json:"digest,omitempty" toon:"digest,omitempty"`
	Calls  []Call `json:"-" toon:"-"`
	Scope  *Scope `json:"-" toon:"-"`

	tree *parser.ParseResult
}

// LowConfidence reports whether any reference to the module needed the
// locator's strip-and-retry fallback.
func (m *Module) LowConfidence() bool {
	return len(m.Stripped) > 0
}

// Visited reports whether the module's source was traversed.
func (m *Module) Visited() bool {
	return m.State == StateCompleted || m.State == StateInProgress
}

func (m *Module) noteStripped(requested string) {
	for _, s := range m.Stripped {
		if s == requested {
			return
		}
	}
	m.Stripped = append(m.Stripped, requested)
}
