// This API exposes the import code generation phase as a library. The input
// is a graph snapshot (the modules, their import edges, and the results of
// tree shaking) and the output is the generated code for every module.
package api

import "context"

type Location struct {
	File     string
	Line     int // 1-based
	Column   int // 0-based, in bytes
	Length   int // in bytes
	LineText string
}

type Message struct {
	Text     string
	Location *Location
	Notes    []Note

	// True for messages caused by a defect in this tool or in the phase that
	// produced the snapshot, as opposed to a problem with the input
	Internal bool
}

type Note struct {
	Text     string
	Location *Location
}

type StderrColor uint8

const (
	ColorIfTerminal StderrColor = iota
	ColorNever
	ColorAlways
)

type LogLevel uint8

const (
	LogLevelSilent LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
	LogLevelDebug
)

type SnapshotFormat uint8

const (
	SnapshotTOML SnapshotFormat = iota
	SnapshotMsgpack
)

type ModuleIDs uint8

const (
	ModuleIDsNamed ModuleIDs = iota
	ModuleIDsNumeric
)

////////////////////////////////////////////////////////////////////////////////
// Generate API

type GenerateOptions struct {
	Color StderrColor

	// Zero means the default limit of 10 errors and a negative value means no
	// limit
	ErrorLimit int

	LogLevel LogLevel

	Format SnapshotFormat

	// The maximum number of modules generated in parallel. Zero means one per
	// available CPU.
	Jobs int

	ModuleIDs ModuleIDs
	Pathinfo  bool
	ASCIIOnly bool
	Timings   bool
}

type GenerateResult struct {
	Errors   []Message
	Warnings []Message

	Modules []Module

	// The names of the runtime helpers needed by all modules together, such
	// as "__webpack_require__.es"
	RuntimeRequirements []string

	// The implementations of those helpers
	Runtime string

	// The helpers followed by a module map of all generated modules
	Bundle string
}

type Module struct {
	Name                string
	Code                string
	RuntimeRequirements []string
	Async               bool
}

func Generate(snapshot []byte, options GenerateOptions) GenerateResult {
	return generateImpl(context.Background(), snapshot, options)
}

// Like "Generate" but stops early if "ctx" is canceled. Cancellation is
// reported as an error message.
func GenerateContext(ctx context.Context, snapshot []byte, options GenerateOptions) GenerateResult {
	return generateImpl(ctx, snapshot, options)
}
