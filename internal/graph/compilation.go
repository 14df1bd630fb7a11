package graph

import (
	"sort"

	"github.com/esmlink/esmlink/internal/ast"
)

// These are the results of the passes that run before code generation. They
// are computed once and never modified afterward, so they can be read from
// any number of goroutines.
type Compilation struct {
	usedSymbols    map[ast.SymbolRef]struct{}
	sideEffectFree map[ast.ModuleID]struct{}
	included       map[ast.ModuleID]struct{}
}

type CompilationInput struct {
	UsedSymbols    []ast.SymbolRef
	SideEffectFree []ast.ModuleID
	Included       []ast.ModuleID
}

func NewCompilation(input CompilationInput) *Compilation {
	c := &Compilation{
		usedSymbols:    make(map[ast.SymbolRef]struct{}, len(input.UsedSymbols)),
		sideEffectFree: make(map[ast.ModuleID]struct{}, len(input.SideEffectFree)),
		included:       make(map[ast.ModuleID]struct{}, len(input.Included)),
	}
	for _, ref := range input.UsedSymbols {
		c.usedSymbols[ref] = struct{}{}
	}
	for _, id := range input.SideEffectFree {
		c.sideEffectFree[id] = struct{}{}
	}
	for _, id := range input.Included {
		c.included[id] = struct{}{}
	}
	return c
}

func (c *Compilation) IsSymbolUsed(ref ast.SymbolRef) bool {
	_, ok := c.usedSymbols[ref]
	return ok
}

func (c *Compilation) IsSideEffectFree(id ast.ModuleID) bool {
	_, ok := c.sideEffectFree[id]
	return ok
}

func (c *Compilation) IsIncluded(id ast.ModuleID) bool {
	_, ok := c.included[id]
	return ok
}

// Returns the included modules in ascending id order. Never iterate over the
// map directly since that would make the output order non-deterministic.
func (c *Compilation) IncludedModules() []ast.ModuleID {
	result := make([]ast.ModuleID, 0, len(c.included))
	for id := range c.included {
		result = append(result, id)
	}
	sort.Slice(result, func(i int, j int) bool { return result[i] < result[j] })
	return result
}

func (c *Compilation) UsedSymbolCount() int {
	return len(c.usedSymbols)
}
