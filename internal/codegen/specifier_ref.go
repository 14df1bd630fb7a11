package codegen

import (
	"strings"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/helpers"
)

const unusedImportExpr = "/* unused import */ undefined"

// The default reference rewriter. It replaces each use site in the module
// body with a property access on the import variable.
type SourceRewriter struct{}

func (SourceRewriter) RewriteRef(ctx *Context, ref *ast.SpecifierRef, dep ast.DependencyID, request string, fullModuleRef bool) {
	if ctx.Source == nil {
		return
	}

	var expr string
	if fullModuleRef {
		expr = refExpr(ctx, ref, dep, request)
		if ref.Call && len(ref.IDs) > 0 {
			// Don't pass the namespace object as "this"
			expr = "(0, " + expr + ")"
		}
	} else {
		expr = unusedImportExpr
	}

	if ref.Shorthand {
		expr = ref.Local + ": " + expr
	}
	ctx.Source.Replace(ref.Range, expr)
}

func refExpr(ctx *Context, ref *ast.SpecifierRef, dep ast.DependencyID, request string) string {
	importVar := ctx.ImportVar(request)
	sb := strings.Builder{}
	ids := ref.IDs

	if len(ids) > 0 && ids[0] == "default" {
		if target, ok := ctx.Graph.TargetOf(dep); ok && ctx.Graph.ModuleType(target) == ast.ModuleJSDynamic {
			// The getter created by the statement tail handles both kinds of
			// CommonJS modules
			sb.WriteString(importVar)
			sb.WriteString("_default()")
			ids = ids[1:]
		}
	}
	if sb.Len() == 0 {
		sb.WriteString(importVar)
	}

	asciiOnly := ctx.Options != nil && ctx.Options.ASCIIOnly
	for _, id := range ids {
		sb.WriteByte('[')
		sb.Write(helpers.QuoteForJSON(id, asciiOnly))
		sb.WriteByte(']')
	}
	return sb.String()
}
