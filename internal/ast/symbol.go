package ast

import "fmt"

type SymbolRefKind uint8

const (
	// A top-level binding declared directly in "Module"
	SymbolDirect SymbolRefKind = iota

	// "import local from 'path'" as seen from "Importer"
	SymbolImportDefault

	// "import {imported as local} from 'path'" as seen from "Importer"
	SymbolImport

	// "export {local as imported} from 'path'". The re-exporting module is both
	// "Module" and "Importer" since it is the module that owns the new export.
	SymbolReExport
)

// Identifies one exported binding for liveness purposes. The zero value is
// not meaningful. This is a plain value with structural equality so it can be
// used directly as a map key.
type SymbolRef struct {
	Local    string
	Imported MaybeName
	Module   ModuleID
	Importer ModuleID
	Kind     SymbolRefKind
}

func DirectSymbol(module ModuleID, name string) SymbolRef {
	return SymbolRef{Kind: SymbolDirect, Module: module, Importer: module, Local: name}
}

func IndirectImportDefault(source ModuleID, local string, importer ModuleID) SymbolRef {
	return SymbolRef{Kind: SymbolImportDefault, Module: source, Local: local, Importer: importer}
}

func IndirectImport(source ModuleID, local string, imported MaybeName, importer ModuleID) SymbolRef {
	return SymbolRef{Kind: SymbolImport, Module: source, Local: local, Imported: imported, Importer: importer}
}

func IndirectReExport(source ModuleID, local string, imported MaybeName, importer ModuleID) SymbolRef {
	return SymbolRef{Kind: SymbolReExport, Module: source, Local: local, Imported: imported, Importer: importer}
}

func (ref SymbolRef) IsIndirect() bool {
	return ref.Kind != SymbolDirect
}

func (ref SymbolRef) String() string {
	switch ref.Kind {
	case SymbolDirect:
		return fmt.Sprintf("direct(%d, %q)", ref.Module, ref.Local)
	case SymbolImportDefault:
		return fmt.Sprintf("import-default(%d, %q, importer=%d)", ref.Module, ref.Local, ref.Importer)
	case SymbolImport:
		return fmt.Sprintf("import(%d, %q, %s, importer=%d)", ref.Module, ref.Local, maybeNameString(ref.Imported), ref.Importer)
	case SymbolReExport:
		return fmt.Sprintf("re-export(%d, %q, %s, importer=%d)", ref.Module, ref.Local, maybeNameString(ref.Imported), ref.Importer)
	default:
		panic("Internal error")
	}
}

func maybeNameString(name MaybeName) string {
	if name.IsSet {
		return fmt.Sprintf("%q", name.Text)
	}
	return "none"
}

func ParseSymbolRefKind(name string) (SymbolRefKind, bool) {
	switch name {
	case "direct":
		return SymbolDirect, true
	case "import-default":
		return SymbolImportDefault, true
	case "import":
		return SymbolImport, true
	case "re-export":
		return SymbolReExport, true
	}
	return 0, false
}
