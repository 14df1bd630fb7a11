package linker

import (
	"fmt"
	"strconv"

	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/runtime"
)

// Joins the helper implementations the modules need and a module map with
// one factory function per module. Module loading itself is left to the
// bootstrap of whatever embeds this output.
func Bundle(options *config.Options, outputs []OutputModule) string {
	j := helpers.Joiner{}
	j.AddString(runtime.Code(RuntimeRequirements(outputs)))
	j.AddString("var __webpack_modules__ = ({\n")

	for i, output := range outputs {
		key := strconv.FormatUint(uint64(output.ID), 10)
		if options.ModuleIDs == config.ModuleIDsNamed {
			key = string(helpers.QuoteForJSON(output.Name, options.ASCIIOnly))
		}
		j.AddString(fmt.Sprintf("%s: (function (module, %s, %s) {\n", key, output.ExportsArgument, runtime.RequireName))
		j.AddString(output.Code)
		j.EnsureNewlineAtEnd()
		j.AddString("})")
		if i+1 < len(outputs) {
			j.AddString(",")
		}
		j.AddString("\n")
	}

	j.AddString("});\n")
	return j.Done()
}
