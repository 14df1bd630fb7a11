package ast

// This file contains the data structures that describe one module's import
// and export edges as they arrive at the code generation phase. They are
// produced by parsing and lowering (which happen elsewhere) and are treated as
// immutable here, except for the one-time assignment of a dependency id.

import (
	"fmt"

	"github.com/esmlink/esmlink/internal/logger"
)

// Opaque token identifying a module node in the graph. Module ids are never
// reused and are stable for the lifetime of a compilation.
type ModuleID uint32

// Opaque token identifying one import or export site within a module.
type DependencyID uint32

type DependencyCategory uint8

const (
	CategoryUnknown DependencyCategory = iota
	CategoryESM
	CategoryCommonJS
	CategoryURL
)

func (category DependencyCategory) String() string {
	switch category {
	case CategoryESM:
		return "esm"
	case CategoryCommonJS:
		return "commonjs"
	case CategoryURL:
		return "url"
	default:
		return "unknown"
	}
}

type DependencyKind uint8

const (
	// An entry point provided by the user
	KindEntry DependencyKind = iota

	// An ES6 import statement
	KindESMImport

	// An "export {a, b as c} from 'path'" statement
	KindESMReExport

	// An "export * from 'path'" statement
	KindESMExportStar

	// A call to "require()"
	KindRequire

	// An "import()" expression with a string argument
	KindDynamicImport

	kindCount
)

var kindTable = [kindCount]struct {
	name     string
	category DependencyCategory
}{
	KindEntry:         {"entry", CategoryUnknown},
	KindESMImport:     {"esm-import", CategoryESM},
	KindESMReExport:   {"esm-re-export", CategoryESM},
	KindESMExportStar: {"esm-export-star", CategoryESM},
	KindRequire:       {"require-call", CategoryCommonJS},
	KindDynamicImport: {"dynamic-import", CategoryESM},
}

func (kind DependencyKind) String() string {
	if kind < kindCount {
		return kindTable[kind].name
	}
	return fmt.Sprintf("kind(%d)", uint8(kind))
}

func (kind DependencyKind) Category() DependencyCategory {
	if kind < kindCount {
		return kindTable[kind].category
	}
	return CategoryUnknown
}

func DependencyKindNames() []string {
	names := make([]string, kindCount)
	for kind := DependencyKind(0); kind < kindCount; kind++ {
		names[kind] = kindTable[kind].name
	}
	return names
}

// Returns false if the name doesn't match any known dependency kind
func ParseDependencyKind(name string) (DependencyKind, bool) {
	for kind := DependencyKind(0); kind < kindCount; kind++ {
		if kindTable[kind].name == name {
			return kind, true
		}
	}
	return 0, false
}

type ModuleType uint8

const (
	ModuleJSAuto ModuleType = iota
	ModuleJS
	ModuleJSESM
	ModuleJSDynamic
	ModuleJSON
	ModuleCSS
	ModuleAsset
)

var moduleTypeNames = []string{
	ModuleJSAuto:    "javascript/auto",
	ModuleJS:        "javascript",
	ModuleJSESM:     "javascript/esm",
	ModuleJSDynamic: "javascript/dynamic",
	ModuleJSON:      "json",
	ModuleCSS:       "css",
	ModuleAsset:     "asset",
}

func (t ModuleType) String() string {
	if int(t) < len(moduleTypeNames) {
		return moduleTypeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

func (t ModuleType) IsJSLike() bool {
	switch t {
	case ModuleJSAuto, ModuleJS, ModuleJSESM, ModuleJSDynamic:
		return true
	}
	return false
}

func ModuleTypeNames() []string {
	return append([]string(nil), moduleTypeNames...)
}

func ParseModuleType(name string) (ModuleType, bool) {
	for i, text := range moduleTypeNames {
		if text == name {
			return ModuleType(i), true
		}
	}
	return 0, false
}

// An optional name. The zero value means "no name", which is different from
// the empty string since arbitrary module namespace identifiers may be empty.
type MaybeName struct {
	Text  string
	IsSet bool
}

func SomeName(text string) MaybeName {
	return MaybeName{Text: text, IsSet: true}
}

func (n MaybeName) Or(fallback string) string {
	if n.IsSet {
		return n.Text
	}
	return fallback
}

type SpecifierKind uint8

const (
	// "import * as ns from 'path'"
	SpecifierNamespace SpecifierKind = iota

	// "import local from 'path'"
	SpecifierDefault

	// "import {imported as local} from 'path'" or "export {local as imported} from 'path'"
	SpecifierNamed
)

func (kind SpecifierKind) String() string {
	switch kind {
	case SpecifierNamespace:
		return "namespace"
	case SpecifierDefault:
		return "default"
	case SpecifierNamed:
		return "named"
	default:
		panic("Internal error")
	}
}

type Specifier struct {
	// For a namespace specifier this is the namespace name
	Local    string
	Imported MaybeName
	Kind     SpecifierKind
}

func NamespaceSpecifier(name string) Specifier {
	return Specifier{Kind: SpecifierNamespace, Local: name}
}

func DefaultSpecifier(local string) Specifier {
	return Specifier{Kind: SpecifierDefault, Local: local}
}

func NamedSpecifier(local string, imported MaybeName) Specifier {
	return Specifier{Kind: SpecifierNamed, Local: local, Imported: imported}
}

func (s Specifier) String() string {
	switch s.Kind {
	case SpecifierNamespace:
		return "* as " + s.Local
	case SpecifierNamed:
		if s.Imported.IsSet && s.Imported.Text != s.Local {
			return s.Imported.Text + " as " + s.Local
		}
	}
	return s.Local
}

// A use site of an imported binding. These are rewritten after the edge that
// owns them has decided whether a runtime namespace object exists.
type SpecifierRef struct {
	Range logger.Range

	// The name used at the use site
	Local string

	// The chain of property names being accessed on the imported module. This
	// is empty for a namespace reference and ["default"] for a default import.
	IDs []string

	Kind SpecifierKind

	// If true, the reference is the target of a call expression and must not
	// pass the namespace object as "this"
	Call bool

	// If true, the reference is an object literal shorthand property such as
	// "{ foo }" and must be expanded to "{ foo: ... }"
	Shorthand bool
}

// One ESM import or export-from site
type ImportEdge struct {
	Request string

	// Optional, used for diagnostics only
	Range logger.Range

	Specifiers []Specifier
	Refs       []SpecifierRef

	// Assigned exactly once before code generation
	ID Index32

	Kind DependencyKind

	// If true, this is "export * from 'path'" and the specifier list is ignored
	ExportAll bool
}

func (edge *ImportEdge) Category() DependencyCategory {
	return edge.Kind.Category()
}

func (edge *ImportEdge) DependencyID() (DependencyID, bool) {
	if !edge.ID.IsValid() {
		return 0, false
	}
	return DependencyID(edge.ID.GetIndex()), true
}

func (edge *ImportEdge) AssignID(id DependencyID) error {
	if edge.ID.IsValid() {
		return fmt.Errorf("dependency %q already has id %d", edge.Request, edge.ID.GetIndex())
	}
	edge.ID = MakeIndex32(uint32(id))
	return nil
}

// This stores a 32-bit index where the zero value is an invalid index. This is
// a better alternative to storing the index as a pointer since that has the
// same properties but takes up more space and costs an extra pointer traversal.
type Index32 struct {
	flippedBits uint32
}

func MakeIndex32(index uint32) Index32 {
	return Index32{flippedBits: ^index}
}

func (i Index32) IsValid() bool {
	return i.flippedBits != 0
}

func (i Index32) GetIndex() uint32 {
	return ^i.flippedBits
}
