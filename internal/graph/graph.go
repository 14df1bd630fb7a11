package graph

// The graph is an immutable snapshot of the resolved module graph as it
// exists after scanning and tree shaking. Code generation only ever reads it,
// so it can be shared by any number of goroutines without locking.

import (
	"fmt"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/logger"
)

const DefaultExportsArgument = "__webpack_exports__"

type SideEffectsKind uint8

const (
	// The default value conservatively considers all files to have side effects.
	HasSideEffects SideEffectsKind = iota

	// This file was listed as not having side effects by a "package.json"
	// file in one of our containing directories with a "sideEffects" field.
	NoSideEffects_PackageJSON

	// This file was loaded using a data-oriented loader (e.g. "json") that is
	// known to not have side effects.
	NoSideEffects_PureData

	// The usage analysis pass proved that evaluating this module has no
	// observable effect beyond producing its exports.
	NoSideEffects_Analyzed
)

var sideEffectsNames = []string{
	HasSideEffects:            "",
	NoSideEffects_PackageJSON: "package-json",
	NoSideEffects_PureData:    "pure-data",
	NoSideEffects_Analyzed:    "analyzed",
}

func ParseSideEffectsKind(text string) (SideEffectsKind, bool) {
	if text == "true" {
		return HasSideEffects, true
	}
	for i, name := range sideEffectsNames {
		if name == text {
			return SideEffectsKind(i), true
		}
	}
	return HasSideEffects, false
}

func (kind SideEffectsKind) String() string {
	if kind == HasSideEffects {
		return "true"
	}
	return sideEffectsNames[kind]
}

type Module struct {
	// The readable name of the module, e.g. "./src/index.js". This is also
	// what "Source.PrettyPath" holds and is used for diagnostics.
	Name string

	// The module body with its import and export statements already removed.
	// Specifier references in "Edges" point into this text.
	Source logger.Source

	// This is the name of the exports object inside the module wrapper
	ExportsArgument string

	// All import and export edges in source order. Each edge has been assigned
	// its dependency id by the time the graph is finished.
	Edges []ast.ImportEdge

	// Maps each distinct request to its generated import variable
	importVars map[string]string

	ID          ast.ModuleID
	Type        ast.ModuleType
	SideEffects SideEffectsKind

	// True if the module body itself contains a top-level "await"
	HasTopLevelAwait bool

	// True if this module must be evaluated asynchronously. This is the case
	// if it has a top-level await or if it imports an async module.
	IsAsync bool
}

func (m *Module) IsSideEffectFree() bool {
	return m.SideEffects != HasSideEffects
}

type edgeTarget struct {
	module ast.Index32
}

type Graph struct {
	modules []Module

	// Indexed by dependency id
	targets []edgeTarget
}

func (g *Graph) Modules() []Module {
	return g.modules
}

func (g *Graph) Module(id ast.ModuleID) (*Module, bool) {
	if int(id) >= len(g.modules) {
		return nil, false
	}
	return &g.modules[id], true
}

func (g *Graph) ModuleByName(name string) (*Module, bool) {
	for i := range g.modules {
		if g.modules[i].Name == name {
			return &g.modules[i], true
		}
	}
	return nil, false
}

// Returns the module that a dependency resolved to. This fails for unknown
// dependency ids and for dependencies that never resolved to a module.
func (g *Graph) ModuleByDependency(id ast.DependencyID) (*Module, bool) {
	if int(id) >= len(g.targets) {
		return nil, false
	}
	target := g.targets[id].module
	if !target.IsValid() {
		return nil, false
	}
	return &g.modules[target.GetIndex()], true
}

func (g *Graph) TargetOf(id ast.DependencyID) (ast.ModuleID, bool) {
	if module, ok := g.ModuleByDependency(id); ok {
		return module.ID, true
	}
	return 0, false
}

func (g *Graph) ModuleName(id ast.ModuleID) string {
	if module, ok := g.Module(id); ok {
		return module.Name
	}
	return ""
}

func (g *Graph) IsAsync(id ast.ModuleID) bool {
	if module, ok := g.Module(id); ok {
		return module.IsAsync
	}
	return false
}

func (g *Graph) ModuleType(id ast.ModuleID) ast.ModuleType {
	if module, ok := g.Module(id); ok {
		return module.Type
	}
	return ast.ModuleJSAuto
}

func (g *Graph) ExportsArgument(id ast.ModuleID) string {
	if module, ok := g.Module(id); ok && module.ExportsArgument != "" {
		return module.ExportsArgument
	}
	return DefaultExportsArgument
}

// Returns the name of the variable that holds the namespace object of the
// module imported by "request" from within "module". Every edge in the same
// module with the same request shares one variable.
func (g *Graph) ImportVar(module ast.ModuleID, request string) string {
	if m, ok := g.Module(module); ok {
		if name, ok := m.importVars[request]; ok {
			return name
		}
	}

	// The request doesn't belong to this module. There is no index to use, so
	// fall back to a name that can't collide with a precomputed one.
	return fmt.Sprintf("%s__WEBPACK_IMPORTED_MODULE__", helpers.ToIdentifier(request))
}

func importVarName(request string, index int) string {
	return fmt.Sprintf("%s__WEBPACK_IMPORTED_MODULE_%d__", helpers.ToIdentifier(request), index)
}

// Modules that are known to have no side effects based on their own metadata
func (g *Graph) SideEffectFreeModules() []ast.ModuleID {
	var result []ast.ModuleID
	for i := range g.modules {
		if g.modules[i].IsSideEffectFree() {
			result = append(result, g.modules[i].ID)
		}
	}
	return result
}
