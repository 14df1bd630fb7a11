package initfrag

// Init fragments are the snippets of code that must run before a module body:
// import declarations, async dependency handling, and export wiring. They are
// collected while each edge of a module is processed and then emitted as the
// module prologue, ordered by stage and then by the order they were added.

import (
	"errors"

	"github.com/esmlink/esmlink/internal/helpers"
)

type Stage uint8

const (
	StageConstants Stage = iota
	StageAsyncBoundary
	StageHarmonyExports
	StageHarmonyImports
	StageProvides
	StageAsyncDependencies
	StageAsyncHarmonyImports

	stageCount
)

var stageNames = [stageCount]string{
	StageConstants:           "constants",
	StageAsyncBoundary:       "async-boundary",
	StageHarmonyExports:      "harmony-exports",
	StageHarmonyImports:      "harmony-imports",
	StageProvides:            "provides",
	StageAsyncDependencies:   "async-dependencies",
	StageAsyncHarmonyImports: "async-harmony-imports",
}

func (s Stage) String() string {
	if s < stageCount {
		return stageNames[s]
	}
	return "unknown"
}

type Fragment struct {
	Content string

	// Optional code that must appear after the module body, such as the
	// closing part of a wrapper opened by "Content". Trailers are emitted in
	// the reverse order of their fragments so that wrappers nest properly.
	End string

	Stage Stage
}

var ErrDrained = errors.New("init fragments were already drained")

// A ledger belongs to exactly one module and is not safe for concurrent use.
// Each stage has its own slice so that no sorting is ever needed.
type Ledger struct {
	stages  [stageCount][]Fragment
	count   int
	drained bool
}

func (l *Ledger) Append(fragment Fragment) error {
	if l.drained {
		return ErrDrained
	}
	if fragment.Stage >= stageCount {
		panic("Internal error")
	}
	l.stages[fragment.Stage] = append(l.stages[fragment.Stage], fragment)
	l.count++
	return nil
}

func (l *Ledger) Len() int {
	return l.count
}

// Returns the fragments of one stage without draining. This exists for
// inspection in tests and debug output only.
func (l *Ledger) Stage(stage Stage) []Fragment {
	return l.stages[stage]
}

// Returns every fragment in ascending stage order and in insertion order
// within a stage. The ledger can't be used after this.
func (l *Ledger) Drain() ([]Fragment, error) {
	if l.drained {
		return nil, ErrDrained
	}
	l.drained = true
	result := make([]Fragment, 0, l.count)
	for stage := range l.stages {
		result = append(result, l.stages[stage]...)
		l.stages[stage] = nil
	}
	return result, nil
}

func Render(fragments []Fragment) string {
	j := helpers.Joiner{}
	for _, fragment := range fragments {
		j.AddString(fragment.Content)
		if fragment.Content != "" {
			j.EnsureNewlineAtEnd()
		}
	}
	return j.Done()
}

func RenderEnd(fragments []Fragment) string {
	j := helpers.Joiner{}
	for i := len(fragments) - 1; i >= 0; i-- {
		if end := fragments[i].End; end != "" {
			j.AddString(end)
			j.EnsureNewlineAtEnd()
		}
	}
	return j.Done()
}
