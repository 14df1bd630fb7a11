package graph

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/esmlink/esmlink/internal/ast"
)

type Builder struct {
	modules []Module

	// Parallel to each module's edge list
	edgeTargets [][]ast.Index32

	finished bool
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Adds a module and returns its id. Any edges already present on the module
// are discarded; add them with "AddEdge" so that their targets are known.
func (b *Builder) AddModule(module Module) ast.ModuleID {
	id, err := safecast.Conv[uint32](len(b.modules))
	if err != nil {
		panic(fmt.Errorf("module count overflow: %w", err))
	}
	module.ID = ast.ModuleID(id)
	module.Edges = nil
	module.importVars = nil
	module.IsAsync = false
	if module.Source.PrettyPath == "" {
		module.Source.PrettyPath = module.Name
	}
	b.modules = append(b.modules, module)
	b.edgeTargets = append(b.edgeTargets, nil)
	return module.ID
}

// Adds an edge from "importer" that resolved to "target"
func (b *Builder) AddEdge(importer ast.ModuleID, edge ast.ImportEdge, target ast.ModuleID) {
	b.addEdge(importer, edge, ast.MakeIndex32(uint32(target)))
}

// Adds an edge that never resolved to a module. Code generation for such an
// edge is an internal error since resolution failures are reported earlier.
func (b *Builder) AddUnresolvedEdge(importer ast.ModuleID, edge ast.ImportEdge) {
	b.addEdge(importer, edge, ast.Index32{})
}

func (b *Builder) addEdge(importer ast.ModuleID, edge ast.ImportEdge, target ast.Index32) {
	module := &b.modules[importer]
	module.Edges = append(module.Edges, edge)
	b.edgeTargets[importer] = append(b.edgeTargets[importer], target)
}

// Assigns dependency ids, computes import variable names, and propagates the
// async flag. The builder must not be used after this.
func (b *Builder) Finish() (*Graph, error) {
	if b.finished {
		return nil, fmt.Errorf("graph builder was already finished")
	}
	b.finished = true

	g := &Graph{modules: b.modules}

	// Dependency ids are assigned in module order and then in edge order, which
	// makes them deterministic for a given input
	for i := range g.modules {
		module := &g.modules[i]
		module.importVars = make(map[string]string)
		for j := range module.Edges {
			edge := &module.Edges[j]
			id, err := safecast.Conv[uint32](len(g.targets))
			if err != nil {
				return nil, fmt.Errorf("dependency count overflow: %w", err)
			}
			if err := edge.AssignID(ast.DependencyID(id)); err != nil {
				return nil, fmt.Errorf("%s: %w", module.Name, err)
			}
			target := b.edgeTargets[i][j]
			if target.IsValid() && int(target.GetIndex()) >= len(g.modules) {
				return nil, fmt.Errorf("%s: dependency %q points to unknown module %d", module.Name, edge.Request, target.GetIndex())
			}
			g.targets = append(g.targets, edgeTarget{module: target})
			if _, ok := module.importVars[edge.Request]; !ok {
				module.importVars[edge.Request] = importVarName(edge.Request, len(module.importVars))
			}
		}
	}

	g.propagateAsync()
	return g, nil
}

func propagatesAsync(kind ast.DependencyKind) bool {
	switch kind {
	case ast.KindESMImport, ast.KindESMReExport, ast.KindESMExportStar:
		return true
	}
	return false
}

// A module is async if it has a top-level await or if it statically imports
// an async module. This walks the reverse edges starting from every module
// with a top-level await, so cycles are handled without any special casing.
func (g *Graph) propagateAsync() {
	importers := make([][]ast.ModuleID, len(g.modules))
	for i := range g.modules {
		for _, edge := range g.modules[i].Edges {
			if !propagatesAsync(edge.Kind) {
				continue
			}
			id, _ := edge.DependencyID()
			if target := g.targets[id].module; target.IsValid() {
				importers[target.GetIndex()] = append(importers[target.GetIndex()], g.modules[i].ID)
			}
		}
	}

	var queue []ast.ModuleID
	for i := range g.modules {
		if g.modules[i].HasTopLevelAwait {
			g.modules[i].IsAsync = true
			queue = append(queue, g.modules[i].ID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, importer := range importers[id] {
			if module := &g.modules[importer]; !module.IsAsync {
				module.IsAsync = true
				queue = append(queue, importer)
			}
		}
	}
}
