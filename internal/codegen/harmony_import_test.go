package codegen

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/initfrag"
	"github.com/esmlink/esmlink/internal/runtime"
	"github.com/esmlink/esmlink/internal/test"
)

type fakeStatements struct{}

func (fakeStatements) ImportStatement(ctx *Context, dep ast.DependencyID, request string) (string, string) {
	return fmt.Sprintf("head(%s);\n", request), fmt.Sprintf("tail(%s);\n", request)
}

type refCall struct {
	local         string
	fullModuleRef bool
}

type recordingRefs struct {
	calls []refCall
}

func (r *recordingRefs) RewriteRef(ctx *Context, ref *ast.SpecifierRef, dep ast.DependencyID, request string, fullModuleRef bool) {
	r.calls = append(r.calls, refCall{local: ref.Local, fullModuleRef: fullModuleRef})
}

type fixture struct {
	graph  *graph.Graph
	edge   *ast.ImportEdge
	entry  ast.ModuleID
	target ast.ModuleID
}

// Builds a graph where "./entry.js" has exactly one edge to "./target.js"
func newFixture(t *testing.T, target graph.Module, edge ast.ImportEdge) fixture {
	t.Helper()
	b := graph.NewBuilder()
	entry := b.AddModule(graph.Module{Name: "./entry.js", Type: ast.ModuleJSESM})
	target.Name = "./target.js"
	if target.Type == ast.ModuleJSAuto {
		target.Type = ast.ModuleJSESM
	}
	targetID := b.AddModule(target)
	edge.Request = "./target.js"
	b.AddEdge(entry, edge, targetID)
	g, err := b.Finish()
	test.AssertNoError(t, err)
	m, _ := g.Module(entry)
	return fixture{graph: g, edge: &m.Edges[0], entry: entry, target: targetID}
}

type compilationSets struct {
	used           []ast.SymbolRef
	sideEffectFree bool
	excluded       bool
}

func (f fixture) compilation(sets compilationSets) *graph.Compilation {
	input := graph.CompilationInput{UsedSymbols: sets.used, Included: []ast.ModuleID{f.entry}}
	if !sets.excluded {
		input.Included = append(input.Included, f.target)
	}
	if sets.sideEffectFree {
		input.SideEffectFree = []ast.ModuleID{f.target}
	}
	return graph.NewCompilation(input)
}

func (f fixture) context(sets compilationSets) (*Context, *recordingRefs) {
	options := config.DefaultOptions()
	ctx := NewContext(f.entry, f.graph, f.compilation(sets), &options, nil)
	refs := &recordingRefs{}
	ctx.Statements = fakeStatements{}
	ctx.Refs = refs
	return ctx, refs
}

func drain(t *testing.T, ctx *Context) []initfrag.Fragment {
	t.Helper()
	fragments, err := ctx.Fragments.Drain()
	test.AssertNoError(t, err)
	return fragments
}

func stagesOf(fragments []initfrag.Fragment) string {
	stages := make([]string, len(fragments))
	for i, fragment := range fragments {
		stages[i] = fragment.Stage.String()
	}
	return strings.Join(stages, ", ")
}

func namedRef(local string) ast.SpecifierRef {
	return ast.SpecifierRef{Local: local, IDs: []string{local}, Kind: ast.SpecifierNamed}
}

func namedImport(locals ...string) ast.ImportEdge {
	edge := ast.ImportEdge{Kind: ast.KindESMImport}
	for _, local := range locals {
		edge.Specifiers = append(edge.Specifiers, ast.NamedSpecifier(local, ast.MaybeName{}))
		edge.Refs = append(edge.Refs, namedRef(local))
	}
	return edge
}

func expectRefCalls(t *testing.T, refs *recordingRefs, count int, fullModuleRef bool) {
	t.Helper()
	test.AssertEqual(t, len(refs.calls), count)
	for _, call := range refs.calls {
		test.AssertEqual(t, call.fullModuleRef, fullModuleRef)
	}
}

func TestUsedNamedImportSync(t *testing.T) {
	f := newFixture(t, graph.Module{}, namedImport("x"))
	ctx, refs := f.context(compilationSets{
		used: []ast.SymbolRef{ast.IndirectImport(f.target, "x", ast.MaybeName{}, f.entry)},
	})
	test.AssertNoError(t, EmitImport(ctx, f.edge))

	fragments := drain(t, ctx)
	test.AssertEqual(t, len(fragments), 1)
	test.AssertEqual(t, fragments[0].Stage, initfrag.StageHarmonyImports)
	test.AssertEqual(t, fragments[0].Content, "head(./target.js);\ntail(./target.js);\n")
	test.AssertEqual(t, ctx.RuntimeRequirements.IsEmpty(), true)
	expectRefCalls(t, refs, 1, true)
}

func TestDeadImportOfSideEffectFreeModuleIsElided(t *testing.T) {
	f := newFixture(t, graph.Module{}, namedImport("x", "y"))
	ctx, refs := f.context(compilationSets{sideEffectFree: true})
	test.AssertNoError(t, EmitImport(ctx, f.edge))

	test.AssertEqual(t, len(drain(t, ctx)), 0)
	test.AssertEqual(t, ctx.RuntimeRequirements.IsEmpty(), true)
	expectRefCalls(t, refs, 2, false)
}

func TestDeadImportWithSideEffectsIsKept(t *testing.T) {
	f := newFixture(t, graph.Module{}, namedImport("x"))
	ctx, refs := f.context(compilationSets{})
	test.AssertNoError(t, EmitImport(ctx, f.edge))

	fragments := drain(t, ctx)
	test.AssertEqual(t, stagesOf(fragments), "harmony-imports")
	expectRefCalls(t, refs, 1, true)
}

func TestBareImportWithSideEffects(t *testing.T) {
	f := newFixture(t, graph.Module{}, ast.ImportEdge{Kind: ast.KindESMImport})
	ctx, _ := f.context(compilationSets{})
	test.AssertNoError(t, EmitImport(ctx, f.edge))
	test.AssertEqual(t, len(drain(t, ctx)), 1)

	ctx, _ = f.context(compilationSets{sideEffectFree: true})
	test.AssertNoError(t, EmitImport(ctx, f.edge))
	test.AssertEqual(t, len(drain(t, ctx)), 0)
}

func TestExcludedTargetShortCircuits(t *testing.T) {
	edge := namedImport("x")
	edge.Specifiers = append(edge.Specifiers, ast.NamespaceSpecifier("ns"))
	f := newFixture(t, graph.Module{HasTopLevelAwait: true}, edge)

	// Neither liveness nor side effects matter once the module is gone
	for _, sets := range []compilationSets{
		{excluded: true},
		{excluded: true, sideEffectFree: true},
		{excluded: true, used: []ast.SymbolRef{ast.IndirectImport(f.target, "x", ast.MaybeName{}, f.entry)}},
	} {
		ctx, refs := f.context(sets)
		test.AssertNoError(t, EmitImport(ctx, f.edge))
		test.AssertEqual(t, len(drain(t, ctx)), 0)
		test.AssertEqual(t, ctx.RuntimeRequirements.IsEmpty(), true)
		expectRefCalls(t, refs, 1, false)
	}

	exportStar := newFixture(t, graph.Module{}, ast.ImportEdge{Kind: ast.KindESMExportStar, ExportAll: true})
	ctx, _ := exportStar.context(compilationSets{excluded: true})
	test.AssertNoError(t, EmitImport(ctx, exportStar.edge))
	test.AssertEqual(t, len(drain(t, ctx)), 0)
	test.AssertEqual(t, ctx.RuntimeRequirements.Has(runtime.ExportStar), false)
}

func TestNamespaceImportIsAlwaysEmitted(t *testing.T) {
	edge := ast.ImportEdge{Kind: ast.KindESMImport, Specifiers: []ast.Specifier{ast.NamespaceSpecifier("ns")}}
	f := newFixture(t, graph.Module{}, edge)
	ctx, _ := f.context(compilationSets{sideEffectFree: true})
	test.AssertNoError(t, EmitImport(ctx, f.edge))
	test.AssertEqual(t, len(drain(t, ctx)), 1)
}

func TestAsyncImportOrdering(t *testing.T) {
	f := newFixture(t, graph.Module{HasTopLevelAwait: true}, namedImport("x"))
	ctx, _ := f.context(compilationSets{
		used: []ast.SymbolRef{ast.IndirectImport(f.target, "x", ast.MaybeName{}, f.entry)},
	})
	test.AssertNoError(t, EmitImport(ctx, f.edge))

	fragments := drain(t, ctx)
	test.AssertEqual(t, stagesOf(fragments), "harmony-imports, harmony-imports, async-harmony-imports")
	test.AssertEqual(t, fragments[0].Content, "head(./target.js);\n")
	test.AssertEqualWithDiff(t, fragments[1].Content,
		"var __webpack_async_dependencies__ = __webpack_handle_async_dependencies__([_target_js__WEBPACK_IMPORTED_MODULE_0__]);\n"+
			"([_target_js__WEBPACK_IMPORTED_MODULE_0__] = __webpack_async_dependencies__.then ? "+
			"(await __webpack_async_dependencies__)() : __webpack_async_dependencies__);")
	test.AssertEqual(t, fragments[2].Content, "tail(./target.js);\n")
	test.AssertEqual(t, ctx.RuntimeRequirements.Has(runtime.ExportStar), false)
}

func TestAsyncTailNeverPrecedesWrapper(t *testing.T) {
	b := graph.NewBuilder()
	entry := b.AddModule(graph.Module{Name: "./entry.js", Type: ast.ModuleJSESM})
	a := b.AddModule(graph.Module{Name: "./a.js", Type: ast.ModuleJSESM, HasTopLevelAwait: true})
	s := b.AddModule(graph.Module{Name: "./s.js", Type: ast.ModuleJSESM})
	b.AddEdge(entry, ast.ImportEdge{Request: "./a.js", Kind: ast.KindESMImport}, a)
	b.AddEdge(entry, ast.ImportEdge{Request: "./s.js", Kind: ast.KindESMImport}, s)
	g, err := b.Finish()
	test.AssertNoError(t, err)

	options := config.DefaultOptions()
	c := graph.NewCompilation(graph.CompilationInput{Included: []ast.ModuleID{entry, a, s}})
	ctx := NewContext(entry, g, c, &options, nil)
	ctx.Statements = fakeStatements{}
	m, _ := g.Module(entry)
	test.AssertNoError(t, EmitModule(ctx, m.Edges))

	rendered := initfrag.Render(drain(t, ctx))
	test.AssertEqualWithDiff(t, rendered, "head(./a.js);\n"+
		"var __webpack_async_dependencies__ = __webpack_handle_async_dependencies__([_a_js__WEBPACK_IMPORTED_MODULE_0__]);\n"+
		"([_a_js__WEBPACK_IMPORTED_MODULE_0__] = __webpack_async_dependencies__.then ? (await __webpack_async_dependencies__)() : __webpack_async_dependencies__);\n"+
		"head(./s.js);\ntail(./s.js);\n"+
		"tail(./a.js);\n")
}

func TestExportStarStaging(t *testing.T) {
	edge := ast.ImportEdge{Kind: ast.KindESMExportStar, ExportAll: true}

	sync := newFixture(t, graph.Module{SideEffects: graph.NoSideEffects_PackageJSON}, edge)
	ctx, _ := sync.context(compilationSets{sideEffectFree: true})
	test.AssertNoError(t, EmitImport(ctx, sync.edge))
	fragments := drain(t, ctx)
	test.AssertEqual(t, stagesOf(fragments), "harmony-imports, harmony-imports")
	test.AssertEqual(t, fragments[1].Content, "__webpack_require__.es(_target_js__WEBPACK_IMPORTED_MODULE_0__, __webpack_exports__);\n")
	test.AssertEqual(t, ctx.RuntimeRequirements, runtime.ExportStar)

	async := newFixture(t, graph.Module{HasTopLevelAwait: true}, edge)
	ctx, _ = async.context(compilationSets{})
	test.AssertNoError(t, EmitImport(ctx, async.edge))
	fragments = drain(t, ctx)
	test.AssertEqual(t, stagesOf(fragments), "harmony-imports, harmony-imports, async-harmony-imports, async-harmony-imports")
	test.AssertEqual(t, fragments[3].Content, "__webpack_require__.es(_target_js__WEBPACK_IMPORTED_MODULE_0__, __webpack_exports__);\n")
	test.AssertEqual(t, ctx.RuntimeRequirements.Has(runtime.ExportStar), true)
}

func TestExportStarUsesExportsArgument(t *testing.T) {
	b := graph.NewBuilder()
	entry := b.AddModule(graph.Module{Name: "./entry.js", ExportsArgument: "exports"})
	target := b.AddModule(graph.Module{Name: "./t.js"})
	b.AddEdge(entry, ast.ImportEdge{Request: "./t.js", Kind: ast.KindESMExportStar, ExportAll: true}, target)
	g, err := b.Finish()
	test.AssertNoError(t, err)

	options := config.DefaultOptions()
	ctx := NewContext(entry, g, graph.NewCompilation(graph.CompilationInput{Included: []ast.ModuleID{entry, target}}), &options, nil)
	ctx.Statements = fakeStatements{}
	m, _ := g.Module(entry)
	test.AssertNoError(t, EmitImport(ctx, &m.Edges[0]))
	fragments := drain(t, ctx)
	test.AssertEqual(t, fragments[len(fragments)-1].Content, "__webpack_require__.es(_t_js__WEBPACK_IMPORTED_MODULE_0__, exports);\n")
}

func TestExportStarIgnoresSpecifiers(t *testing.T) {
	edge := ast.ImportEdge{Kind: ast.KindESMExportStar, ExportAll: true, Specifiers: []ast.Specifier{ast.DefaultSpecifier("bad")}}
	f := newFixture(t, graph.Module{}, edge)
	ctx, _ := f.context(compilationSets{sideEffectFree: true})
	test.AssertNoError(t, EmitImport(ctx, f.edge))
	test.AssertEqual(t, len(drain(t, ctx)), 2)
}

func TestReExportLiveness(t *testing.T) {
	edge := ast.ImportEdge{Kind: ast.KindESMReExport, Specifiers: []ast.Specifier{ast.NamedSpecifier("a", ast.SomeName("b"))}}
	f := newFixture(t, graph.Module{}, edge)

	ctx, _ := f.context(compilationSets{
		sideEffectFree: true,
		used:           []ast.SymbolRef{ast.IndirectReExport(f.entry, "a", ast.SomeName("b"), f.entry)},
	})
	test.AssertNoError(t, EmitImport(ctx, f.edge))
	test.AssertEqual(t, len(drain(t, ctx)), 1)

	ctx, _ = f.context(compilationSets{sideEffectFree: true})
	test.AssertNoError(t, EmitImport(ctx, f.edge))
	test.AssertEqual(t, len(drain(t, ctx)), 0)
}

func expectInvariant(t *testing.T, err error, expected Invariant) *InvariantError {
	t.Helper()
	var invariantErr *InvariantError
	if !errors.As(err, &invariantErr) {
		t.Fatalf("Expected an invariant error, got %v", err)
	}
	test.AssertEqual(t, invariantErr.Violated, expected)
	return invariantErr
}

func TestMissingDependencyID(t *testing.T) {
	f := newFixture(t, graph.Module{}, namedImport("x"))
	ctx, refs := f.context(compilationSets{})
	edge := namedImport("x")
	edge.Request = "./target.js"

	err := EmitImport(ctx, &edge)
	invariantErr := expectInvariant(t, err, InvariantMissingID)
	test.AssertEqual(t, invariantErr.Request, "./target.js")
	test.AssertEqual(t, len(drain(t, ctx)), 0)
	test.AssertEqual(t, len(refs.calls), 0)
}

func TestMissingTargetModule(t *testing.T) {
	b := graph.NewBuilder()
	entry := b.AddModule(graph.Module{Name: "./entry.js"})
	b.AddUnresolvedEdge(entry, ast.ImportEdge{Request: "./gone.js", Kind: ast.KindESMImport})
	g, err := b.Finish()
	test.AssertNoError(t, err)

	options := config.DefaultOptions()
	ctx := NewContext(entry, g, graph.NewCompilation(graph.CompilationInput{Included: []ast.ModuleID{entry}}), &options, nil)
	m, _ := g.Module(entry)
	err = EmitModule(ctx, m.Edges)
	invariantErr := expectInvariant(t, err, InvariantMissingModule)
	test.AssertEqual(t, invariantErr.Error(), `module 0: esm-import import of "./gone.js" (dependency 0): dependency did not resolve to a module`)
}

func TestDefaultOnReExportIsFatal(t *testing.T) {
	edge := ast.ImportEdge{Kind: ast.KindESMReExport, Specifiers: []ast.Specifier{ast.DefaultSpecifier("v")}}
	f := newFixture(t, graph.Module{}, edge)
	ctx, refs := f.context(compilationSets{})
	expectInvariant(t, EmitImport(ctx, f.edge), InvariantDefaultReExport)
	test.AssertEqual(t, len(drain(t, ctx)), 0)
	test.AssertEqual(t, len(refs.calls), 0)
}

func TestUnsupportedKind(t *testing.T) {
	f := newFixture(t, graph.Module{}, ast.ImportEdge{Kind: ast.KindRequire})
	ctx, _ := f.context(compilationSets{})
	expectInvariant(t, EmitImport(ctx, f.edge), InvariantUnsupportedKind)

	// Whole-module emission only visits the kinds it knows about
	m, _ := f.graph.Module(f.entry)
	test.AssertNoError(t, EmitModule(ctx, m.Edges))
	test.AssertEqual(t, len(drain(t, ctx)), 0)
}

func TestEmitAfterDrain(t *testing.T) {
	f := newFixture(t, graph.Module{}, namedImport("x"))
	ctx, _ := f.context(compilationSets{})
	drain(t, ctx)
	invariantErr := expectInvariant(t, EmitImport(ctx, f.edge), InvariantLedgerDrained)
	test.AssertEqual(t, errors.Is(invariantErr, initfrag.ErrDrained), true)
}

func TestEmissionIsDeterministic(t *testing.T) {
	edge := ast.ImportEdge{Kind: ast.KindESMExportStar, ExportAll: true}
	f := newFixture(t, graph.Module{HasTopLevelAwait: true}, edge)
	run := func() (string, runtime.Globals) {
		ctx, _ := f.context(compilationSets{})
		test.AssertNoError(t, EmitImport(ctx, f.edge))
		fragments := drain(t, ctx)
		return stagesOf(fragments) + "\n" + initfrag.Render(fragments), ctx.RuntimeRequirements
	}
	expectedText, expectedGlobals := run()
	for i := 0; i < 5; i++ {
		text, globals := run()
		test.AssertEqualWithDiff(t, text, expectedText)
		test.AssertEqual(t, globals, expectedGlobals)
	}
}
