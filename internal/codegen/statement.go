package codegen

import (
	"fmt"
	"strconv"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/runtime"
)

// The default statement generator. It loads the imported module with
// "__webpack_require__" and, for modules without ES module semantics, wraps
// the result so that a default import reads "module.exports".
type ImportStatements struct{}

func moduleIDExpr(ctx *Context, target ast.ModuleID) string {
	if ctx.Options != nil && ctx.Options.ModuleIDs == config.ModuleIDsNumeric {
		return strconv.FormatUint(uint64(target), 10)
	}
	asciiOnly := ctx.Options != nil && ctx.Options.ASCIIOnly
	return string(helpers.QuoteForJSON(ctx.Graph.ModuleName(target), asciiOnly))
}

func (ImportStatements) ImportStatement(ctx *Context, dep ast.DependencyID, request string) (string, string) {
	importVar := ctx.ImportVar(request)
	target, ok := ctx.Graph.TargetOf(dep)
	if !ok {
		// An unresolved dependency throws when it's evaluated
		head := fmt.Sprintf("var %s = (function() { throw new Error(%s); })();\n",
			importVar, helpers.QuoteForJSON("Cannot find module "+request, false))
		return head, ""
	}

	ctx.RuntimeRequirements.Add(runtime.Require)
	comment := ""
	if ctx.Options != nil && ctx.Options.Pathinfo {
		comment = "/* harmony import */ "
	}
	head := fmt.Sprintf("%svar %s = %s(%s);\n", comment, importVar, runtime.RequireName, moduleIDExpr(ctx, target))

	tail := ""
	if ctx.Graph.ModuleType(target) == ast.ModuleJSDynamic {
		ctx.RuntimeRequirements.Add(runtime.CompatGetDefaultExport)
		tail = fmt.Sprintf("%svar %s_default = /*#__PURE__*/%s(%s);\n",
			comment, importVar, runtime.CompatGetDefaultExport.Name(), importVar)
	}
	return head, tail
}
