package graph

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidAdjacency is returned when an adjacency document does not match
// the expected shape.
var ErrInvalidAdjacency = errors.New("invalid adjacency map")

// AdjacencyEntry is one node of an adjacency map with its targets.
type AdjacencyEntry struct {
	Node    string   `json:"node" toon:"node"`
	Targets []string `json:"targets" toon:"targets"`
}

const adjacencySchemaURL = "https://howitworks.dev/schemas/adjacency.json"

const adjacencySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "propertyNames": {"minLength": 1},
  "additionalProperties": {
    "type": "array",
    "items": {"type": "string", "minLength": 1}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func adjacencyValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(adjacencySchema))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(adjacencySchemaURL, doc); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = c.Compile(adjacencySchemaURL)
	})
	return compiledSchema, schemaErr
}

// WriteAdjacency writes g as a JSON object mapping each node, in insertion
// order, to the array of its targets.
func WriteAdjacency(w io.Writer, g *CallGraph) error {
	bw := bufio.NewWriter(w)
	entries := g.Adjacency()

	bw.WriteString("{")
	for i, e := range entries {
		if i > 0 {
			bw.WriteString(",")
		}
		key, err := json.Marshal(e.Node)
		if err != nil {
			return err
		}
		targets := e.Targets
		if targets == nil {
			targets = []string{}
		}
		value, err := json.Marshal(targets)
		if err != nil {
			return err
		}
		bw.WriteString("\n  ")
		bw.Write(key)
		bw.WriteString(": ")
		bw.Write(value)
	}
	if len(entries) > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

// ReadAdjacency builds a graph from a JSON adjacency map. Node insertion
// order follows key order in the document, then first appearance as a
// target.
func ReadAdjacency(r io.Reader) (*CallGraph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read adjacency map: %w", err)
	}

	sch, err := adjacencyValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to compile adjacency schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAdjacency, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAdjacency, err)
	}

	entries, err := decodeOrdered(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAdjacency, err)
	}

	g := New()
	for _, e := range entries {
		g.AddNode(e.Node)
	}
	for _, e := range entries {
		for _, t := range e.Targets {
			g.AddEdge(e.Node, t)
		}
	}
	return g, nil
}

// decodeOrdered walks the object token by token; map decoding would lose
// key order.
func decodeOrdered(data []byte) ([]AdjacencyEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var entries []AdjacencyEntry
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var targets []string
		if err := dec.Decode(&targets); err != nil {
			return nil, err
		}
		// Duplicate keys: the last value wins, position of the first is kept.
		if i, ok := index[key]; ok {
			entries[i].Targets = targets
			continue
		}
		index[key] = len(entries)
		entries = append(entries, AdjacencyEntry{Node: key, Targets: targets})
	}
	return entries, nil
}

// ReadAdjacencyFile reads an adjacency document from path.
func ReadAdjacencyFile(path string) (*CallGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAdjacency(f)
}
