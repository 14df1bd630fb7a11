package codegen

import (
	"fmt"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/logger"
)

// Each invariant names a contract with an earlier phase. Breaking one is
// always a bug in the tool, never a problem with the code being bundled.
type Invariant uint8

const (
	InvariantMissingID Invariant = iota
	InvariantMissingModule
	InvariantDefaultReExport
	InvariantUnsupportedKind
	InvariantLedgerDrained
)

func (i Invariant) String() string {
	switch i {
	case InvariantMissingID:
		return "dependency has no assigned id"
	case InvariantMissingModule:
		return "dependency did not resolve to a module"
	case InvariantDefaultReExport:
		return "re-export edge has a default specifier"
	case InvariantUnsupportedKind:
		return "dependency kind does not support import code generation"
	case InvariantLedgerDrained:
		return "init fragments were added after the module was finalized"
	default:
		return "unknown invariant"
	}
}

type InvariantError struct {
	Err      error
	Request  string
	Range    logger.Range
	Edge     ast.Index32
	Kind     ast.DependencyKind
	Module   ast.ModuleID
	Violated Invariant
}

func (e *InvariantError) Error() string {
	text := fmt.Sprintf("module %d: %s import of %q", e.Module, e.Kind, e.Request)
	if e.Edge.IsValid() {
		text += fmt.Sprintf(" (dependency %d)", e.Edge.GetIndex())
	}
	text += ": " + e.Violated.String()
	if e.Err != nil {
		text += ": " + e.Err.Error()
	}
	return text
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

func invariantError(ctx *Context, edge *ast.ImportEdge, violated Invariant, err error) *InvariantError {
	return &InvariantError{
		Module:   ctx.Module,
		Edge:     edge.ID,
		Kind:     edge.Kind,
		Request:  edge.Request,
		Range:    edge.Range,
		Violated: violated,
		Err:      err,
	}
}
