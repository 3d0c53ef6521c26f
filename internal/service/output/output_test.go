package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/howitworks/internal/output"
	"github.com/panbanda/howitworks/pkg/analyzer/graph"
)

func sampleGraph() *graph.CallGraph {
	g := graph.New()
	g.AddEdge("app.main", "app.main.run")
	g.AddEdge("app.main.run", "app.util.log")
	return g
}

func TestNew(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	assert.Equal(t, "dot", svc.format)
	assert.True(t, svc.Colored())
	assert.Equal(t, os.Stdout, svc.Writer())
}

func TestNewWithOptions(t *testing.T) {
	var buf bytes.Buffer
	svc, err := New(WithFormat("json"), WithWriter(&buf), WithColor(false))
	require.NoError(t, err)
	assert.Same(t, &buf, svc.Writer())
	assert.False(t, svc.Colored())

	format, err := svc.GraphFormat()
	require.NoError(t, err)
	assert.Equal(t, output.GraphJSON, format)
	assert.Equal(t, output.FormatJSON, svc.TableFormat())
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.dot")

	svc, err := New(WithFile(path))
	require.NoError(t, err)
	assert.False(t, svc.Colored(), "no colors when writing to file")
	require.NotNil(t, svc.file)

	require.NoError(t, svc.WriteGraph(sampleGraph(), output.GraphOptions{}))
	require.NoError(t, svc.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"app.main" -> "app.main.run";`)
}

func TestNewWithFile_Invalid(t *testing.T) {
	_, err := New(WithFile("/nonexistent/dir/file.txt"))
	assert.Error(t, err)
}

func TestClose_NoFile(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	assert.NoError(t, svc.Close())
}

func TestTableFormat(t *testing.T) {
	tests := []struct {
		format string
		want   output.Format
	}{
		{"dot", output.FormatText},
		{"html", output.FormatText},
		{"text", output.FormatText},
		{"json", output.FormatJSON},
		{"toon", output.FormatTOON},
		{"markdown", output.FormatMarkdown},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			svc, err := New(WithFormat(tt.format))
			require.NoError(t, err)
			assert.Equal(t, tt.want, svc.TableFormat())
		})
	}
}

func TestWriteGraph(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"dot", "digraph"},
		{"json", `"app.main.run": ["app.util.log"]`},
		{"mermaid", "graph"},
		{"html", "vis-network"},
		{"text", "app.util.log"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			svc, err := New(WithFormat(tt.format), WithWriter(&buf), WithColor(false))
			require.NoError(t, err)
			require.NoError(t, svc.WriteGraph(sampleGraph(), output.GraphOptions{}))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestWriteGraph_UnknownFormat(t *testing.T) {
	svc, err := New(WithFormat("markdown"), WithWriter(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.ErrorContains(t, svc.WriteGraph(sampleGraph(), output.GraphOptions{}), "unknown graph format")
}

func TestWriteTable(t *testing.T) {
	table := output.NewTable("Modules", []string{"Module", "State"},
		[][]string{{"app.main", "completed"}}, nil, map[string]string{"app.main": "completed"})

	var buf bytes.Buffer
	svc, err := New(WithFormat("dot"), WithWriter(&buf), WithColor(false))
	require.NoError(t, err)
	require.NoError(t, svc.WriteTable(table))
	assert.Contains(t, strings.ToUpper(buf.String()), "MODULE")
	assert.Contains(t, buf.String(), "completed")

	buf.Reset()
	svc, err = New(WithFormat("json"), WithWriter(&buf))
	require.NoError(t, err)
	require.NoError(t, svc.WriteTable(table))
	assert.Contains(t, buf.String(), `"app.main": "completed"`)
}
