package linker

import (
	"fmt"
	"strings"

	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/initfrag"
	"github.com/esmlink/esmlink/internal/logger"
)

// With "--log-level=debug" every module's drained init fragments are logged
// with their stages, which is the quickest way to see why an import statement
// ended up where it did
func (c *linkerContext) logFragments(module *graph.Module, fragments []initfrag.Fragment) {
	if c.options.LogLevel > logger.LevelDebug {
		return
	}

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Init fragments for %q:", module.Name))
	if len(fragments) == 0 {
		sb.WriteString(" (none)")
	}
	for _, fragment := range fragments {
		first, _, _ := strings.Cut(fragment.Content, "\n")
		sb.WriteString(fmt.Sprintf("\n  [%s]", fragment.Stage))
		if first != "" {
			sb.WriteString(" " + first)
		}
		if fragment.End != "" {
			sb.WriteString(" (has end)")
		}
	}
	c.log.AddDebug(sb.String())
}
