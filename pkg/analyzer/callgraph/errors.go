package callgraph

import (
	"errors"
	"fmt"

	"github.com/panbanda/howitworks/internal/locator"
	"github.com/panbanda/howitworks/pkg/parser"
)

// ErrEntryPoint is matched by every failure that concerns the entry module
// itself. Failures on imported modules never surface as errors.
var ErrEntryPoint = errors.New("entry point")

var (
	ErrEntryUnresolvable = fmt.Errorf("%w unresolvable", ErrEntryPoint)
	ErrEntryRead         = fmt.Errorf("%w unreadable", ErrEntryPoint)
	ErrEntryParse        = fmt.Errorf("%w unparsable", ErrEntryPoint)
)

// Re-exported so callers can classify module failures without importing
// the locator and parser packages.
var (
	ErrUnresolvable = locator.ErrUnresolvable
	ErrSyntax       = parser.ErrSyntax
)
