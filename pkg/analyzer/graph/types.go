package graph

import "strings"

// MermaidOptions configures Mermaid diagram generation.
type MermaidOptions struct {
	MaxNodes  int              `json:"max_nodes" toon:"max_nodes"`
	MaxEdges  int              `json:"max_edges" toon:"max_edges"`
	Direction MermaidDirection `json:"direction" toon:"direction"`
	// Highlight maps node names to a fill color.
	Highlight map[string]string `json:"highlight,omitempty" toon:"highlight,omitempty"`
}

// MermaidDirection specifies the graph direction.
type MermaidDirection string

const (
	DirectionTD MermaidDirection = "TD"
	DirectionLR MermaidDirection = "LR"
	DirectionBT MermaidDirection = "BT"
	DirectionRL MermaidDirection = "RL"
)

// DefaultMermaidOptions returns sensible defaults.
func DefaultMermaidOptions() MermaidOptions {
	return MermaidOptions{
		MaxNodes:  50,
		MaxEdges:  150,
		Direction: DirectionLR,
	}
}

// ToMermaid generates Mermaid diagram syntax with default options.
func (g *CallGraph) ToMermaid() string {
	return g.ToMermaidWithOptions(DefaultMermaidOptions())
}

// ToMermaidWithOptions generates Mermaid diagram syntax. When limits apply,
// the first nodes in insertion order are kept.
func (g *CallGraph) ToMermaidWithOptions(opts MermaidOptions) string {
	var b strings.Builder
	direction := opts.Direction
	if direction == "" {
		direction = DirectionTD
	}
	b.WriteString("graph " + string(direction) + "\n")

	nodes := g.Nodes()
	if opts.MaxNodes > 0 && len(nodes) > opts.MaxNodes {
		nodes = nodes[:opts.MaxNodes]
	}
	keep := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		keep[n] = true
	}

	var edges []Edge
	for _, e := range g.Edges() {
		if keep[e.From] && keep[e.To] {
			edges = append(edges, e)
		}
	}
	if opts.MaxEdges > 0 && len(edges) > opts.MaxEdges {
		edges = edges[:opts.MaxEdges]
	}

	for _, n := range nodes {
		id := SanitizeMermaidID(n)
		b.WriteString("    " + id + "[\"" + EscapeMermaidLabel(n) + "\"]\n")
		if color, ok := opts.Highlight[n]; ok {
			b.WriteString("    style " + id + " fill:" + color + "\n")
		}
	}
	for _, e := range edges {
		b.WriteString("    " + SanitizeMermaidID(e.From) + " --> " + SanitizeMermaidID(e.To) + "\n")
	}
	return b.String()
}

// SanitizeMermaidID makes an ID safe for Mermaid diagrams.
func SanitizeMermaidID(id string) string {
	if id == "" {
		return "empty"
	}
	var result []byte
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	// Ensure ID doesn't start with a number
	if len(result) > 0 && result[0] >= '0' && result[0] <= '9' {
		result = append([]byte{'n'}, result...)
	}
	return string(result)
}

// EscapeMermaidLabel escapes special characters in labels for Mermaid.
func EscapeMermaidLabel(s string) string {
	var result []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '&':
			result = append(result, []byte("&amp;")...)
		case '"':
			result = append(result, []byte("&quot;")...)
		case '<':
			result = append(result, []byte("&lt;")...)
		case '>':
			result = append(result, []byte("&gt;")...)
		case '|':
			result = append(result, []byte("&#124;")...)
		case '[':
			result = append(result, []byte("&#91;")...)
		case ']':
			result = append(result, []byte("&#93;")...)
		case '\n':
			result = append(result, []byte("<br/>")...)
		default:
			result = append(result, c)
		}
	}
	return string(result)
}
