package linker

// The linker is the scheduler of the code generation phase. It runs import
// code generation for every module that survived tree shaking, turns each
// module's init fragments into its prologue, and reports which runtime
// helpers the output needs. Modules are independent of each other at this
// point so they are generated in parallel.

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/codegen"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/initfrag"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/runtime"
)

type OutputModule struct {
	Name string

	// The module body with its prologue, ready to be placed inside a module
	// factory function
	Code string

	// The name of the exports object parameter of the module factory
	ExportsArgument string

	RuntimeRequirements runtime.Globals
	ID                  ast.ModuleID
	IsAsync             bool
}

type linkerContext struct {
	options     *config.Options
	timer       *helpers.Timer
	log         logger.Log
	graph       *graph.Graph
	compilation *graph.Compilation
}

// Generates every included module. Modules that break an internal invariant
// are reported to the log and left out of the result. The only error
// returned is cancellation of "ctx".
func Link(
	ctx context.Context,
	options *config.Options,
	timer *helpers.Timer,
	log logger.Log,
	g *graph.Graph,
	compilation *graph.Compilation,
) ([]OutputModule, error) {
	timer.Begin("Link")
	defer timer.End("Link")

	c := linkerContext{
		options:     options,
		timer:       timer,
		log:         wrappedLog(log),
		graph:       g,
		compilation: compilation,
	}

	included := compilation.IncludedModules()
	results := make([]OutputModule, len(included))
	generated := make([]bool, len(included))

	c.timer.Begin("Generate modules")
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(1, min(options.EffectiveJobs(), len(included))))
	for i, id := range included {
		i, id := i, id
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}

			// Each index is only written by one goroutine
			defer c.recoverInternalError(id)
			results[i], generated[i] = c.generateModule(id)
			return nil
		})
	}
	err := group.Wait()
	c.timer.End("Generate modules")
	if err != nil {
		return nil, err
	}

	outputs := make([]OutputModule, 0, len(included))
	for i, ok := range generated {
		if ok {
			outputs = append(outputs, results[i])
		}
	}
	return outputs, nil
}

// The union of every helper needed by the given modules
func RuntimeRequirements(outputs []OutputModule) runtime.Globals {
	var globals runtime.Globals
	for _, output := range outputs {
		globals.Add(output.RuntimeRequirements)
	}
	return globals
}

func wrappedLog(log logger.Log) logger.Log {
	var mutex sync.Mutex
	var hasErrors bool
	addMsg := log.AddMsg

	log.AddMsg = func(msg logger.Msg) {
		if msg.Kind.IsError() {
			mutex.Lock()
			defer mutex.Unlock()
			hasErrors = true
		}
		addMsg(msg)
	}

	log.HasErrors = func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return hasErrors
	}

	return log
}

func (c *linkerContext) generateModule(id ast.ModuleID) (OutputModule, bool) {
	module, ok := c.graph.Module(id)
	if !ok {
		c.log.AddInternalError(nil, logger.Range{}, fmt.Sprintf("included module %d is not in the graph", id), nil)
		return OutputModule{}, false
	}

	ctx := codegen.NewContext(id, c.graph, c.compilation, c.options, &module.Source)
	if err := codegen.EmitModule(ctx, module.Edges); err != nil {
		c.reportError(module, err)
		return OutputModule{}, false
	}

	fragments, err := ctx.Fragments.Drain()
	if err != nil {
		c.reportError(module, err)
		return OutputModule{}, false
	}
	body, err := ctx.Source.Source()
	if err != nil {
		c.reportError(module, err)
		return OutputModule{}, false
	}
	c.logFragments(module, fragments)

	code := c.finalizeModule(module, ctx, fragments, body)
	return OutputModule{
		ID:                  id,
		Name:                module.Name,
		Code:                code,
		ExportsArgument:     c.graph.ExportsArgument(id),
		RuntimeRequirements: ctx.RuntimeRequirements,
		IsAsync:             module.IsAsync,
	}, true
}

func (c *linkerContext) reportError(module *graph.Module, err error) {
	var invariantErr *codegen.InvariantError
	if errors.As(err, &invariantErr) {
		c.log.AddInternalError(&module.Source, invariantErr.Range, invariantErr.Error(),
			[]logger.MsgData{{Text: "This is a bug in an earlier compilation phase, not in the code being bundled."}})
		return
	}
	c.log.AddInternalError(&module.Source, logger.Range{}, err.Error(), nil)
}

func hasESMSyntax(module *graph.Module) bool {
	if module.Type == ast.ModuleJSESM {
		return true
	}
	for _, edge := range module.Edges {
		if edge.Kind != ast.KindDynamicImport && edge.Category() == ast.CategoryESM {
			return true
		}
	}
	return false
}

// Assembles the final text of one module: the namespace marker, the async
// wrapper if needed, the init fragments, the rewritten body, and finally the
// fragment trailers
func (c *linkerContext) finalizeModule(module *graph.Module, ctx *codegen.Context, fragments []initfrag.Fragment, body string) string {
	j := helpers.Joiner{}
	j.AddString("\"use strict\";\n")

	if hasESMSyntax(module) {
		ctx.RuntimeRequirements.Add(runtime.MakeNamespaceObject)
		j.AddString(fmt.Sprintf("%s(%s);\n", runtime.MakeNamespaceObject.Name(), c.graph.ExportsArgument(module.ID)))
	}

	if module.IsAsync {
		ctx.RuntimeRequirements.Add(runtime.AsyncModule)
		j.AddString(fmt.Sprintf("%s(module, async function (%s, %s) { try {\n",
			runtime.AsyncModule.Name(), runtime.HandleAsyncDependenciesName, runtime.AsyncResultName))
	}

	j.AddString(initfrag.Render(fragments))
	j.AddString(body)
	j.EnsureNewlineAtEnd()
	j.AddString(initfrag.RenderEnd(fragments))

	if module.IsAsync {
		hasAwait := ""
		if module.HasTopLevelAwait {
			hasAwait = ", 1"
		}
		j.AddString(fmt.Sprintf("%s();\n} catch(e) { %s(e); } }%s);\n",
			runtime.AsyncResultName, runtime.AsyncResultName, hasAwait))
	}
	return j.Done()
}

// Recover from a panic by logging it as an internal error instead of crashing
func (c *linkerContext) recoverInternalError(id ast.ModuleID) {
	if r := recover(); r != nil {
		text := fmt.Sprintf("panic: %v", r)
		if module, ok := c.graph.Module(id); ok {
			text = fmt.Sprintf("%s (while generating %q)", text, module.Name)
		}
		c.log.AddInternalError(nil, logger.Range{}, text,
			[]logger.MsgData{{Text: helpers.PrettyPrintedStack()}})
	}
}
