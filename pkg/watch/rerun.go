package watch

import (
	"errors"
	"sync"

	"github.com/panbanda/howitworks/pkg/analyzer/callgraph"
)

// ErrUnchanged is returned by Rerunner.Run when re-analysis produced the
// same call list as the previous run.
var ErrUnchanged = errors.New("call graph unchanged")

// AnalyzeFunc runs one fresh analysis.
type AnalyzeFunc func() (*callgraph.Result, error)

// Rerunner repeats an analysis on demand and reports only results whose
// fingerprint differs from the last one reported.
type Rerunner struct {
	analyze AnalyzeFunc
	mu      sync.Mutex
	last    uint64
	runs    int
}

// NewRerunner wraps analyze.
func NewRerunner(analyze AnalyzeFunc) *Rerunner {
	return &Rerunner{analyze: analyze}
}

// Run analyzes again. It returns ErrUnchanged alongside the result when the
// graph did not change. The first successful run always counts as a change.
func (r *Rerunner) Run() (*callgraph.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.analyze()
	if err != nil {
		return nil, err
	}

	fp := res.Fingerprint()
	if r.runs > 0 && fp == r.last {
		return res, ErrUnchanged
	}
	r.last = fp
	r.runs++
	return res, nil
}

// Runs returns the number of changed results reported so far.
func (r *Rerunner) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}
