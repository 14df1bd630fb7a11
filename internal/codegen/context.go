package codegen

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/initfrag"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/runtime"
	"github.com/esmlink/esmlink/internal/source"
)

// Read-only queries against the module graph. Implementations must be safe
// to call from many module code generation tasks at once.
type ModuleGraphView interface {
	TargetOf(dep ast.DependencyID) (ast.ModuleID, bool)
	ModuleName(id ast.ModuleID) string
	ModuleType(id ast.ModuleID) ast.ModuleType
	IsAsync(id ast.ModuleID) bool
	ImportVar(module ast.ModuleID, request string) string
	ExportsArgument(id ast.ModuleID) string
}

// Read-only results of tree shaking
type CompilationView interface {
	IsSymbolUsed(ref ast.SymbolRef) bool
	IsSideEffectFree(id ast.ModuleID) bool
	IsIncluded(id ast.ModuleID) bool
}

// Produces the statement that loads the module behind a dependency. The head
// declares the import variable and the tail holds any bindings derived from
// it, which must wait until async dependencies have settled.
type StatementGenerator interface {
	ImportStatement(ctx *Context, dep ast.DependencyID, request string) (head string, tail string)
}

// Rewrites one use site of an imported binding. If "fullModuleRef" is false
// there is no runtime namespace object for the imported module.
type RefRewriter interface {
	RewriteRef(ctx *Context, ref *ast.SpecifierRef, dep ast.DependencyID, request string, fullModuleRef bool)
}

const importVarCacheSize = 128

// Holds everything that is generated for one module. A context is created
// by the task that generates that module and must never be shared with
// another task.
type Context struct {
	Graph       ModuleGraphView
	Compilation CompilationView
	Statements  StatementGenerator
	Refs        RefRewriter
	Options     *config.Options

	// The rewritten module body. This is nil if the module has no source.
	Source *source.ReplaceSource

	importVars *lru.Cache[string, string]

	Fragments           initfrag.Ledger
	RuntimeRequirements runtime.Globals
	Module              ast.ModuleID
}

func NewContext(module ast.ModuleID, graph ModuleGraphView, compilation CompilationView, options *config.Options, src *logger.Source) *Context {
	importVars, err := lru.New[string, string](importVarCacheSize)
	if err != nil {
		panic(err)
	}
	ctx := &Context{
		Module:      module,
		Graph:       graph,
		Compilation: compilation,
		Options:     options,
		Statements:  ImportStatements{},
		Refs:        SourceRewriter{},
		importVars:  importVars,
	}
	if src != nil {
		ctx.Source = source.NewReplaceSource(src)
	}
	return ctx
}

// Returns the import variable for a request made by this module. Every edge
// and every use site of a request asks for this, so it's cached per module.
func (ctx *Context) ImportVar(request string) string {
	if name, ok := ctx.importVars.Get(request); ok {
		return name
	}
	name := ctx.Graph.ImportVar(ctx.Module, request)
	ctx.importVars.Add(request, name)
	return name
}
