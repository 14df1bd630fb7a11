package graph

import (
	"strings"
	"testing"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/test"
)

func importEdge(request string, specifiers ...ast.Specifier) ast.ImportEdge {
	return ast.ImportEdge{Request: request, Kind: ast.KindESMImport, Specifiers: specifiers}
}

func TestBuilderAssignsDependencyIDs(t *testing.T) {
	b := NewBuilder()
	entry := b.AddModule(Module{Name: "./entry.js", Type: ast.ModuleJSESM})
	a := b.AddModule(Module{Name: "./a.js", Type: ast.ModuleJSESM})
	c := b.AddModule(Module{Name: "./c.js", Type: ast.ModuleJSESM})
	b.AddEdge(entry, importEdge("./a.js"), a)
	b.AddEdge(entry, importEdge("./c.js"), c)
	b.AddEdge(a, importEdge("./c.js"), c)
	b.AddUnresolvedEdge(a, importEdge("./missing.js"))

	g, err := b.Finish()
	test.AssertNoError(t, err)

	var ids []ast.DependencyID
	for _, m := range g.Modules() {
		for _, edge := range m.Edges {
			id, ok := edge.DependencyID()
			test.AssertEqual(t, ok, true)
			ids = append(ids, id)
		}
	}
	test.AssertEqual(t, len(ids), 4)
	for i, id := range ids {
		test.AssertEqual(t, id, ast.DependencyID(i))
	}

	target, ok := g.ModuleByDependency(2)
	test.AssertEqual(t, ok, true)
	test.AssertEqual(t, target.ID, c)

	_, ok = g.ModuleByDependency(3)
	test.AssertEqual(t, ok, false)
	_, ok = g.ModuleByDependency(100)
	test.AssertEqual(t, ok, false)

	_, err = b.Finish()
	test.AssertEqual(t, err != nil, true)
}

func TestBuilderRejectsPreassignedID(t *testing.T) {
	b := NewBuilder()
	entry := b.AddModule(Module{Name: "./entry.js"})
	a := b.AddModule(Module{Name: "./a.js"})
	edge := importEdge("./a.js")
	test.AssertNoError(t, edge.AssignID(7))
	b.AddEdge(entry, edge, a)

	_, err := b.Finish()
	test.AssertEqual(t, err != nil, true)
}

func TestImportVarNames(t *testing.T) {
	b := NewBuilder()
	entry := b.AddModule(Module{Name: "./entry.js"})
	a := b.AddModule(Module{Name: "./a.js"})
	lib := b.AddModule(Module{Name: "lodash-es"})
	b.AddEdge(entry, importEdge("./a.js"), a)
	b.AddEdge(entry, importEdge("lodash-es"), lib)
	b.AddEdge(entry, ast.ImportEdge{Request: "./a.js", Kind: ast.KindESMReExport}, a)
	b.AddEdge(a, importEdge("lodash-es"), lib)
	g, err := b.Finish()
	test.AssertNoError(t, err)

	test.AssertEqual(t, g.ImportVar(entry, "./a.js"), "_a_js__WEBPACK_IMPORTED_MODULE_0__")
	test.AssertEqual(t, g.ImportVar(entry, "lodash-es"), "lodash_es__WEBPACK_IMPORTED_MODULE_1__")
	test.AssertEqual(t, g.ImportVar(a, "lodash-es"), "lodash_es__WEBPACK_IMPORTED_MODULE_0__")

	// Unknown pairs still produce a usable identifier
	test.AssertEqual(t, g.ImportVar(a, "./other.js"), "_other_js__WEBPACK_IMPORTED_MODULE__")
	test.AssertEqual(t, g.ImportVar(99, "./a.js"), "_a_js__WEBPACK_IMPORTED_MODULE__")
}

func TestExportsArgument(t *testing.T) {
	b := NewBuilder()
	plain := b.AddModule(Module{Name: "./plain.js"})
	custom := b.AddModule(Module{Name: "./custom.js", ExportsArgument: "exports"})
	g, err := b.Finish()
	test.AssertNoError(t, err)

	test.AssertEqual(t, g.ExportsArgument(plain), DefaultExportsArgument)
	test.AssertEqual(t, g.ExportsArgument(custom), "exports")
	test.AssertEqual(t, g.ExportsArgument(42), DefaultExportsArgument)
}

func TestAsyncPropagation(t *testing.T) {
	b := NewBuilder()
	entry := b.AddModule(Module{Name: "./entry.js"})
	middle := b.AddModule(Module{Name: "./middle.js"})
	tla := b.AddModule(Module{Name: "./tla.js", HasTopLevelAwait: true})
	lazy := b.AddModule(Module{Name: "./lazy.js"})
	cycle := b.AddModule(Module{Name: "./cycle.js"})
	b.AddEdge(entry, importEdge("./middle.js"), middle)
	b.AddEdge(middle, ast.ImportEdge{Request: "./tla.js", Kind: ast.KindESMExportStar, ExportAll: true}, tla)
	b.AddEdge(lazy, ast.ImportEdge{Request: "./tla.js", Kind: ast.KindDynamicImport}, tla)
	b.AddEdge(cycle, importEdge("./entry.js"), entry)
	b.AddEdge(entry, importEdge("./cycle.js"), cycle)
	g, err := b.Finish()
	test.AssertNoError(t, err)

	test.AssertEqual(t, g.IsAsync(tla), true)
	test.AssertEqual(t, g.IsAsync(middle), true)
	test.AssertEqual(t, g.IsAsync(entry), true)
	test.AssertEqual(t, g.IsAsync(cycle), true)

	// Dynamic imports never block evaluation of the importer
	test.AssertEqual(t, g.IsAsync(lazy), false)
}

func TestSideEffectsKind(t *testing.T) {
	for _, kind := range []SideEffectsKind{HasSideEffects, NoSideEffects_PackageJSON, NoSideEffects_PureData, NoSideEffects_Analyzed} {
		parsed, ok := ParseSideEffectsKind(kind.String())
		test.AssertEqual(t, ok, true)
		test.AssertEqual(t, parsed, kind)
	}
	_, ok := ParseSideEffectsKind("false")
	test.AssertEqual(t, ok, false)

	b := NewBuilder()
	b.AddModule(Module{Name: "./a.js"})
	data := b.AddModule(Module{Name: "./data.json", Type: ast.ModuleJSON, SideEffects: NoSideEffects_PureData})
	g, err := b.Finish()
	test.AssertNoError(t, err)
	free := g.SideEffectFreeModules()
	test.AssertEqual(t, len(free), 1)
	test.AssertEqual(t, free[0], data)
}

func TestCompilation(t *testing.T) {
	used := ast.IndirectImport(1, "x", ast.MaybeName{}, 0)
	c := NewCompilation(CompilationInput{
		UsedSymbols:    []ast.SymbolRef{used},
		SideEffectFree: []ast.ModuleID{1},
		Included:       []ast.ModuleID{2, 0, 1},
	})

	test.AssertEqual(t, c.IsSymbolUsed(used), true)
	test.AssertEqual(t, c.IsSymbolUsed(ast.IndirectImport(1, "x", ast.SomeName("x"), 0)), false)
	test.AssertEqual(t, c.IsSideEffectFree(1), true)
	test.AssertEqual(t, c.IsSideEffectFree(0), false)
	test.AssertEqual(t, c.IsIncluded(2), true)
	test.AssertEqual(t, c.IsIncluded(3), false)

	included := c.IncludedModules()
	test.AssertEqual(t, len(included), 3)
	for i, id := range included {
		test.AssertEqual(t, id, ast.ModuleID(i))
	}
}

const exampleSnapshot = `
side-effect-free = ["./util.js"]

[[modules]]
name = "./entry.js"
type = "javascript/esm"
source = "console.log(x)"

  [[modules.edges]]
  request = "./util.js"
  kind = "esm-import"
  target = "./util.js"

    [[modules.edges.specifiers]]
    kind = "named"
    local = "x"

    [[modules.edges.refs]]
    start = 12
    end = 13
    local = "x"
    kind = "named"
    ids = ["x"]

  [[modules.edges]]
  request = "./data.json"
  kind = "esm-import"
  target = "./data.json"

[[modules]]
name = "./util.js"
type = "javascript/esm"
top-level-await = true

[[modules]]
name = "./data.json"
type = "json"
side-effects = "pure-data"
excluded = true

[[used]]
kind = "import"
module = "./util.js"
importer = "./entry.js"
local = "x"
`

func TestSnapshotTOML(t *testing.T) {
	snapshot, err := DecodeSnapshot([]byte(exampleSnapshot), FormatTOML)
	test.AssertNoError(t, err)
	g, c, err := snapshot.Build()
	test.AssertNoError(t, err)

	entry, ok := g.ModuleByName("./entry.js")
	test.AssertEqual(t, ok, true)
	test.AssertEqual(t, len(entry.Edges), 2)
	test.AssertEqual(t, entry.IsAsync, true)
	test.AssertEqual(t, entry.Edges[0].Specifiers[0].Imported.IsSet, false)

	ref := entry.Edges[0].Refs[0]
	test.AssertEqual(t, entry.Source.TextForRange(ref.Range), "x")

	util, _ := g.ModuleByName("./util.js")
	data, _ := g.ModuleByName("./data.json")
	test.AssertEqual(t, c.IsSymbolUsed(ast.IndirectImport(util.ID, "x", ast.MaybeName{}, entry.ID)), true)
	test.AssertEqual(t, c.IsSideEffectFree(util.ID), true)
	test.AssertEqual(t, c.IsSideEffectFree(data.ID), true)
	test.AssertEqual(t, c.IsSideEffectFree(entry.ID), false)
	test.AssertEqual(t, c.IsIncluded(data.ID), false)
	test.AssertEqual(t, c.IsIncluded(entry.ID), true)
}

func TestSnapshotMsgpackRoundTrip(t *testing.T) {
	snapshot, err := DecodeSnapshot([]byte(exampleSnapshot), FormatTOML)
	test.AssertNoError(t, err)
	data, err := snapshot.EncodeMsgpack()
	test.AssertNoError(t, err)

	decoded, err := DecodeSnapshot(data, FormatMsgpack)
	test.AssertNoError(t, err)
	g, c, err := decoded.Build()
	test.AssertNoError(t, err)
	test.AssertEqual(t, len(g.Modules()), 3)
	test.AssertEqual(t, c.UsedSymbolCount(), 1)
}

func TestSnapshotTOMLRoundTrip(t *testing.T) {
	snapshot, err := DecodeSnapshot([]byte(exampleSnapshot), FormatTOML)
	test.AssertNoError(t, err)
	data, err := snapshot.Encode(FormatTOML)
	test.AssertNoError(t, err)

	decoded, err := DecodeSnapshot(data, FormatTOML)
	test.AssertNoError(t, err)
	again, err := decoded.Encode(FormatTOML)
	test.AssertNoError(t, err)
	test.AssertEqualWithDiff(t, string(again), string(data))

	g, _, err := decoded.Build()
	test.AssertNoError(t, err)
	entry, _ := g.ModuleByName("./entry.js")
	test.AssertEqual(t, entry.IsAsync, true)
	test.AssertEqual(t, len(entry.Edges), 2)
}

func expectSnapshotError(t *testing.T, contents string, expected string) {
	t.Helper()
	snapshot, err := DecodeSnapshot([]byte(contents), FormatTOML)
	if err == nil {
		_, _, err = snapshot.Build()
	}
	if err == nil {
		t.Fatalf("Expected error containing %q", expected)
	}
	if !strings.Contains(err.Error(), expected) {
		t.Fatalf("Expected error containing %q, got %q", expected, err.Error())
	}
}

func TestSnapshotErrors(t *testing.T) {
	expectSnapshotError(t, "[[modules]]\nname = \"a\"\n[[modules]]\nname = \"a\"\n", `duplicate module "a"`)
	expectSnapshotError(t, "[[modules]]\nname = \"a\"\ntype = \"wasm\"\n", `unknown type "wasm"`)
	expectSnapshotError(t, "[[modules]]\nname = \"a\"\ncolor = 1\n", "unknown snapshot keys: modules.color")
	expectSnapshotError(t, "[[modules]]\nname = \"a\"\n[[modules.edges]]\nrequest = \"b\"\nkind = \"esm-import\"\ntarget = \"b\"\n",
		`refers to unknown module "b"`)
	expectSnapshotError(t, "[[modules]]\nname = \"a\"\n[[modules.edges]]\nrequest = \"b\"\nkind = \"import\"\n",
		`unknown dependency kind "import"`)
	expectSnapshotError(t, "[[modules]]\nname = \"a\"\nsource = \"ab\"\n[[modules.edges]]\nrequest = \"b\"\nkind = \"esm-import\"\n"+
		"[[modules.edges.refs]]\nstart = 1\nend = 5\nlocal = \"b\"\nkind = \"named\"\n", "invalid range [1, 5)")
	expectSnapshotError(t, "[[modules]]\nname = \"a\"\n[[modules.edges]]\nrequest = \"b\"\nkind = \"esm-imprt\"\n",
		`unknown dependency kind "esm-imprt" (did you mean "esm-import"?)`)
	expectSnapshotError(t, "[[modules]]\nname = \"./lib.js\"\n[[modules]]\nname = \"a\"\n[[modules.edges]]\nrequest = \"b\"\nkind = \"esm-import\"\ntarget = \"./lb.js\"\n",
		`module "a" edge 0 refers to unknown module "./lb.js" (did you mean "./lib.js"?)`)
	expectSnapshotError(t, "[[modules]]\nname = \"a\"\ntype = \"jsn\"\n", `module "a" has unknown type "jsn"`)
	expectSnapshotError(t, "[[used]]\nkind = \"import\"\nmodule = \"nope\"\nlocal = \"x\"\n", `unknown module "nope"`)
}

func TestFormatFromPath(t *testing.T) {
	test.AssertEqual(t, FormatFromPath("graph.toml"), FormatTOML)
	test.AssertEqual(t, FormatFromPath("graph.MSGPACK"), FormatMsgpack)
	test.AssertEqual(t, FormatFromPath("graph"), FormatTOML)
	format, ok := ParseFormat("mpk")
	test.AssertEqual(t, ok, true)
	test.AssertEqual(t, format, FormatMsgpack)
}
