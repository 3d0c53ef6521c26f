// Package output writes call graphs and tables in the format and to the
// destination chosen on the command line.
package output

import (
	"io"
	"os"

	"github.com/panbanda/howitworks/internal/output"
	"github.com/panbanda/howitworks/pkg/analyzer/graph"
)

// Service handles output formatting.
type Service struct {
	format   string
	writer   io.Writer
	colored  bool
	filePath string
	file     *os.File
}

// Option configures a Service.
type Option func(*Service)

// WithFormat sets the output format name (dot, html, json, mermaid, toon,
// text, markdown).
func WithFormat(f string) Option {
	return func(s *Service) {
		s.format = f
	}
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(s *Service) {
		s.writer = w
	}
}

// WithColor enables or disables colored output.
func WithColor(enabled bool) Option {
	return func(s *Service) {
		s.colored = enabled
	}
}

// WithFile sets output to a file.
func WithFile(path string) Option {
	return func(s *Service) {
		s.filePath = path
	}
}

// New creates a new output service.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		format:  string(output.GraphDOT),
		writer:  os.Stdout,
		colored: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.filePath != "" {
		f, err := os.Create(s.filePath)
		if err != nil {
			return nil, err
		}
		s.file = f
		s.writer = f
		s.colored = false // No colors when writing to file
	}

	return s, nil
}

// Close closes the output service and any open files.
func (s *Service) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// Writer returns the current writer.
func (s *Service) Writer() io.Writer {
	return s.writer
}

// Colored returns whether output should be colored.
func (s *Service) Colored() bool {
	return s.colored
}

// GraphFormat resolves the format name to a graph renderer.
func (s *Service) GraphFormat() (output.GraphFormat, error) {
	return output.ParseGraphFormat(s.format)
}

// TableFormat resolves the format name for tabular output. Graph-only
// formats such as dot fall back to text tables.
func (s *Service) TableFormat() output.Format {
	return output.ParseFormat(s.format)
}

// WriteGraph renders g.
func (s *Service) WriteGraph(g *graph.CallGraph, opts output.GraphOptions) error {
	format, err := s.GraphFormat()
	if err != nil {
		return err
	}
	opts.Colored = s.colored
	return output.RenderGraph(s.writer, g, format, opts)
}

// WriteTable renders a table or report.
func (s *Service) WriteTable(r output.Renderable) error {
	return output.NewWriterFormatter(s.TableFormat(), s.writer, s.colored).Output(r)
}
