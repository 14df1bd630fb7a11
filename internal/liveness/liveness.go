package liveness

// Tree shaking records which imported bindings are actually read somewhere in
// the final output. This package answers the narrower question asked during
// code generation: which of the specifiers on one import edge survive.

import (
	"errors"

	"github.com/esmlink/esmlink/internal/ast"
)

// "export default from 'path'" is not valid syntax, so a default specifier on
// a re-export edge means an earlier phase produced a malformed edge
var ErrDefaultOnReExport = errors.New("default specifier on a re-export edge")

type UsedSymbols interface {
	IsSymbolUsed(ref ast.SymbolRef) bool
}

type Target struct {
	ID   ast.ModuleID
	Type ast.ModuleType
}

// Returns the live specifiers of "edge" in their original order. The
// consuming module is the module that contains the edge. Edges with
// "ExportAll" set should not be filtered since "export *" ignores specifiers.
func Filter(edge *ast.ImportEdge, target Target, consumer ast.ModuleID, used UsedSymbols) ([]ast.Specifier, error) {
	isImport := edge.Kind == ast.KindESMImport

	// Interop with a non-JavaScript module such as JSON doesn't go through the
	// symbol tables, so there is nothing to narrow against
	if isImport && !target.Type.IsJSLike() {
		return append([]ast.Specifier(nil), edge.Specifiers...), nil
	}

	var live []ast.Specifier
	for _, specifier := range edge.Specifiers {
		isLive, err := isSpecifierLive(specifier, isImport, target.ID, consumer, used)
		if err != nil {
			return nil, err
		}
		if isLive {
			live = append(live, specifier)
		}
	}
	return live, nil
}

func isSpecifierLive(specifier ast.Specifier, isImport bool, target ast.ModuleID, consumer ast.ModuleID, used UsedSymbols) (bool, error) {
	switch specifier.Kind {
	case ast.SpecifierNamespace:
		// Properties of a namespace object can be accessed dynamically
		return true, nil

	case ast.SpecifierDefault:
		if !isImport {
			return false, ErrDefaultOnReExport
		}
		return used.IsSymbolUsed(ast.IndirectImportDefault(target, specifier.Local, consumer)), nil

	case ast.SpecifierNamed:
		if isImport {
			return used.IsSymbolUsed(ast.IndirectImport(target, specifier.Local, specifier.Imported, consumer)), nil
		}

		// A re-exported binding is a new export of the consuming module, so its
		// usage is recorded against that module and not the target
		return used.IsSymbolUsed(ast.IndirectReExport(consumer, specifier.Local, specifier.Imported, consumer)), nil

	default:
		panic("Internal error")
	}
}
