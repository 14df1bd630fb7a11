package codegen

import (
	"errors"
	"fmt"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/initfrag"
	"github.com/esmlink/esmlink/internal/liveness"
	"github.com/esmlink/esmlink/internal/runtime"
)

type capability struct {
	// "export * from" always re-exports everything regardless of the flag
	// on the edge
	exportsAll bool
}

// Only these dependency kinds produce import statements. Anything else that
// reaches "EmitImport" was routed here by mistake.
var capabilities = map[ast.DependencyKind]capability{
	ast.KindESMImport:     {},
	ast.KindESMReExport:   {},
	ast.KindESMExportStar: {exportsAll: true},
}

func asyncDependenciesCode(importVar string) string {
	return fmt.Sprintf("var __webpack_async_dependencies__ = %s([%s]);\n"+
		"([%s] = __webpack_async_dependencies__.then ? (await __webpack_async_dependencies__)() : __webpack_async_dependencies__);",
		runtime.HandleAsyncDependenciesName, importVar, importVar)
}

func rewriteRefs(ctx *Context, edge *ast.ImportEdge, id ast.DependencyID, fullModuleRef bool) {
	for i := range edge.Refs {
		ctx.Refs.RewriteRef(ctx, &edge.Refs[i], id, edge.Request, fullModuleRef)
	}
}

func appendFragment(ctx *Context, edge *ast.ImportEdge, fragment initfrag.Fragment) error {
	if err := ctx.Fragments.Append(fragment); err != nil {
		return invariantError(ctx, edge, InvariantLedgerDrained, err)
	}
	return nil
}

// Generates the code for one ESM import or export-from edge of the module
// that owns "ctx". Use sites of the imported bindings are always rewritten.
// An import statement is only generated if the imported module is part of
// the output and either something it exports is used or loading it has
// side effects.
func EmitImport(ctx *Context, edge *ast.ImportEdge) error {
	caps, ok := capabilities[edge.Kind]
	if !ok {
		return invariantError(ctx, edge, InvariantUnsupportedKind, nil)
	}
	id, ok := edge.DependencyID()
	if !ok {
		return invariantError(ctx, edge, InvariantMissingID, nil)
	}
	target, ok := ctx.Graph.TargetOf(id)
	if !ok {
		return invariantError(ctx, edge, InvariantMissingModule, nil)
	}

	// The imported module was removed from the output entirely
	if !ctx.Compilation.IsIncluded(target) {
		rewriteRefs(ctx, edge, id, false)
		return nil
	}

	exportAll := edge.ExportAll || caps.exportsAll
	if !exportAll {
		live, err := liveness.Filter(edge, liveness.Target{ID: target, Type: ctx.Graph.ModuleType(target)}, ctx.Module, ctx.Compilation)
		if err != nil {
			if errors.Is(err, liveness.ErrDefaultOnReExport) {
				return invariantError(ctx, edge, InvariantDefaultReExport, nil)
			}
			return invariantError(ctx, edge, InvariantUnsupportedKind, err)
		}

		// Nothing is used and loading the module does nothing observable
		if len(live) == 0 && ctx.Compilation.IsSideEffectFree(target) {
			rewriteRefs(ctx, edge, id, false)
			return nil
		}
	}

	rewriteRefs(ctx, edge, id, true)
	head, tail := ctx.Statements.ImportStatement(ctx, id, edge.Request)
	importVar := ctx.ImportVar(edge.Request)
	isAsync := ctx.Graph.IsAsync(target)

	if isAsync {
		// The tail must not run until the async dependency has settled
		fragments := []initfrag.Fragment{
			{Content: head, Stage: initfrag.StageHarmonyImports},
			{Content: asyncDependenciesCode(importVar), Stage: initfrag.StageHarmonyImports},
			{Content: tail, Stage: initfrag.StageAsyncHarmonyImports},
		}
		for _, fragment := range fragments {
			if err := appendFragment(ctx, edge, fragment); err != nil {
				return err
			}
		}
	} else {
		if err := appendFragment(ctx, edge, initfrag.Fragment{Content: head + tail, Stage: initfrag.StageHarmonyImports}); err != nil {
			return err
		}
	}

	if exportAll {
		ctx.RuntimeRequirements.Add(runtime.ExportStar)
		stage := initfrag.StageHarmonyImports
		if isAsync {
			stage = initfrag.StageAsyncHarmonyImports
		}
		code := fmt.Sprintf("%s(%s, %s);\n", runtime.ExportStar.Name(), importVar, ctx.Graph.ExportsArgument(ctx.Module))
		if err := appendFragment(ctx, edge, initfrag.Fragment{Content: code, Stage: stage}); err != nil {
			return err
		}
	}
	return nil
}

// Processes the edges of one module in order and stops at the first broken
// invariant. Edges of kinds that never generate import code are skipped.
func EmitModule(ctx *Context, edges []ast.ImportEdge) error {
	for i := range edges {
		edge := &edges[i]
		if _, ok := capabilities[edge.Kind]; !ok {
			continue
		}
		if err := EmitImport(ctx, edge); err != nil {
			return err
		}
	}
	return nil
}
