package graph

// A snapshot is the serialized result of everything that runs before code
// generation: the parsed modules with their import edges, the resolved target
// of every edge, and the sets computed by tree shaking. It can be written by
// hand as TOML (handy for tests and bug reports) or produced by tooling as
// MessagePack.

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/logger"
)

type Format uint8

const (
	FormatTOML Format = iota
	FormatMsgpack
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatMsgpack:
		return "msgpack"
	default:
		panic("Internal error")
	}
}

func ParseFormat(text string) (Format, bool) {
	switch strings.ToLower(text) {
	case "toml":
		return FormatTOML, true
	case "msgpack", "mpk":
		return FormatMsgpack, true
	}
	return 0, false
}

// Picks the format from the file extension, defaulting to TOML
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return FormatMsgpack
	}
	return FormatTOML
}

type Snapshot struct {
	Modules []SnapshotModule `toml:"modules" msgpack:"modules"`
	Used    []SnapshotSymbol `toml:"used,omitempty" msgpack:"used,omitempty"`

	// Modules proven side-effect free by analysis, in addition to those whose
	// own metadata says so
	SideEffectFree []string `toml:"side-effect-free,omitempty" msgpack:"side_effect_free,omitempty"`
}

type SnapshotModule struct {
	Name            string         `toml:"name" msgpack:"name"`
	Type            string         `toml:"type,omitempty" msgpack:"type,omitempty"`
	Source          string         `toml:"source,omitempty" msgpack:"source,omitempty"`
	SideEffects     string         `toml:"side-effects,omitempty" msgpack:"side_effects,omitempty"`
	ExportsArgument string         `toml:"exports-argument,omitempty" msgpack:"exports_argument,omitempty"`
	TopLevelAwait   bool           `toml:"top-level-await,omitempty" msgpack:"top_level_await,omitempty"`
	Excluded        bool           `toml:"excluded,omitempty" msgpack:"excluded,omitempty"`
	Edges           []SnapshotEdge `toml:"edges,omitempty" msgpack:"edges,omitempty"`
}

type SnapshotEdge struct {
	Request    string              `toml:"request" msgpack:"request"`
	Kind       string              `toml:"kind" msgpack:"kind"`
	Target     string              `toml:"target,omitempty" msgpack:"target,omitempty"`
	ExportAll  bool                `toml:"export-all,omitempty" msgpack:"export_all,omitempty"`
	Specifiers []SnapshotSpecifier `toml:"specifiers,omitempty" msgpack:"specifiers,omitempty"`
	Refs       []SnapshotRef       `toml:"refs,omitempty" msgpack:"refs,omitempty"`
}

type SnapshotSpecifier struct {
	Kind     string  `toml:"kind" msgpack:"kind"`
	Local    string  `toml:"local" msgpack:"local"`
	Imported *string `toml:"imported,omitempty" msgpack:"imported,omitempty"`
}

// A use site of an imported binding, as a byte range into the module source
type SnapshotRef struct {
	Start     int      `toml:"start" msgpack:"start"`
	End       int      `toml:"end" msgpack:"end"`
	Local     string   `toml:"local" msgpack:"local"`
	Kind      string   `toml:"kind" msgpack:"kind"`
	IDs       []string `toml:"ids,omitempty" msgpack:"ids,omitempty"`
	Call      bool     `toml:"call,omitempty" msgpack:"call,omitempty"`
	Shorthand bool     `toml:"shorthand,omitempty" msgpack:"shorthand,omitempty"`
}

type SnapshotSymbol struct {
	Kind     string  `toml:"kind" msgpack:"kind"`
	Module   string  `toml:"module" msgpack:"module"`
	Importer string  `toml:"importer,omitempty" msgpack:"importer,omitempty"`
	Local    string  `toml:"local" msgpack:"local"`
	Imported *string `toml:"imported,omitempty" msgpack:"imported,omitempty"`
}

func DecodeSnapshot(data []byte, format Format) (*Snapshot, error) {
	var snapshot Snapshot
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), &snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return nil, fmt.Errorf("unknown snapshot keys: %s", strings.Join(keys, ", "))
		}

	case FormatMsgpack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields(true)
		if err := dec.Decode(&snapshot); err != nil {
			return nil, fmt.Errorf("failed to parse MessagePack: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported snapshot format %d", format)
	}
	return &snapshot, nil
}

func (s *Snapshot) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case FormatMsgpack:
		return s.EncodeMsgpack()

	default:
		return nil, fmt.Errorf("unsupported snapshot format %d", format)
	}
}

func (s *Snapshot) EncodeMsgpack() ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type snapshotBuilder struct {
	ids   map[string]ast.ModuleID
	names []string
}

func (sb *snapshotBuilder) lookup(name string, what string) (ast.ModuleID, error) {
	id, ok := sb.ids[name]
	if !ok {
		return 0, fmt.Errorf("%s refers to %w", what, unknownName("module", name, sb.names))
	}
	return id, nil
}

// Suggests a valid name when "name" is one typo away from it
func unknownName(what string, name string, valid []string) error {
	text := fmt.Sprintf("unknown %s %q", what, name)
	if corrected, ok := helpers.MakeTypoDetector(valid).MaybeCorrectTypo(name); ok {
		text += fmt.Sprintf(" (did you mean %q?)", corrected)
	}
	return errors.New(text)
}

// Converts the snapshot into the read-only views used by code generation.
// Every error returned here is a problem with the input, not a tool defect.
func (s *Snapshot) Build() (*Graph, *Compilation, error) {
	sb := snapshotBuilder{ids: make(map[string]ast.ModuleID, len(s.Modules))}
	b := NewBuilder()
	var input CompilationInput

	for _, m := range s.Modules {
		if m.Name == "" {
			return nil, nil, fmt.Errorf("module without a name")
		}
		if _, ok := sb.ids[m.Name]; ok {
			return nil, nil, fmt.Errorf("duplicate module %q", m.Name)
		}
		moduleType := ast.ModuleJSAuto
		if m.Type != "" {
			t, ok := ast.ParseModuleType(m.Type)
			if !ok {
				return nil, nil, fmt.Errorf("module %q has %w", m.Name, unknownName("type", m.Type, ast.ModuleTypeNames()))
			}
			moduleType = t
		}
		sideEffects := HasSideEffects
		if m.SideEffects != "" {
			kind, ok := ParseSideEffectsKind(m.SideEffects)
			if !ok {
				return nil, nil, fmt.Errorf("module %q has %w", m.Name, unknownName("side effects kind", m.SideEffects, sideEffectsNames[1:]))
			}
			sideEffects = kind
		}
		id := b.AddModule(Module{
			Name:             m.Name,
			Source:           logger.Source{PrettyPath: m.Name, Contents: m.Source},
			ExportsArgument:  m.ExportsArgument,
			Type:             moduleType,
			SideEffects:      sideEffects,
			HasTopLevelAwait: m.TopLevelAwait,
		})
		sb.ids[m.Name] = id
		sb.names = append(sb.names, m.Name)
		if !m.Excluded {
			input.Included = append(input.Included, id)
		}
		if sideEffects != HasSideEffects {
			input.SideEffectFree = append(input.SideEffectFree, id)
		}
	}

	for _, m := range s.Modules {
		importer := sb.ids[m.Name]
		for i, e := range m.Edges {
			edge, err := sb.edge(m, e)
			if err != nil {
				return nil, nil, fmt.Errorf("module %q edge %d: %w", m.Name, i, err)
			}
			if e.Target == "" {
				b.AddUnresolvedEdge(importer, edge)
				continue
			}
			target, err := sb.lookup(e.Target, fmt.Sprintf("module %q edge %d", m.Name, i))
			if err != nil {
				return nil, nil, err
			}
			b.AddEdge(importer, edge, target)
		}
	}

	for _, name := range s.SideEffectFree {
		id, err := sb.lookup(name, "side-effect-free list")
		if err != nil {
			return nil, nil, err
		}
		input.SideEffectFree = append(input.SideEffectFree, id)
	}

	for i, symbol := range s.Used {
		ref, err := sb.symbol(symbol)
		if err != nil {
			return nil, nil, fmt.Errorf("used symbol %d: %w", i, err)
		}
		input.UsedSymbols = append(input.UsedSymbols, ref)
	}

	graph, err := b.Finish()
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(input.SideEffectFree, func(i int, j int) bool { return input.SideEffectFree[i] < input.SideEffectFree[j] })
	return graph, NewCompilation(input), nil
}

func (sb *snapshotBuilder) edge(m SnapshotModule, e SnapshotEdge) (ast.ImportEdge, error) {
	kind, ok := ast.ParseDependencyKind(e.Kind)
	if !ok {
		return ast.ImportEdge{}, unknownName("dependency kind", e.Kind, ast.DependencyKindNames())
	}
	edge := ast.ImportEdge{
		Request:   e.Request,
		Kind:      kind,
		ExportAll: e.ExportAll,
	}
	for _, s := range e.Specifiers {
		specifier, err := parseSpecifier(s)
		if err != nil {
			return ast.ImportEdge{}, err
		}
		edge.Specifiers = append(edge.Specifiers, specifier)
	}
	for _, r := range e.Refs {
		ref, err := parseRef(r, len(m.Source))
		if err != nil {
			return ast.ImportEdge{}, err
		}
		edge.Refs = append(edge.Refs, ref)
	}
	return edge, nil
}

func parseSpecifierKind(text string) (ast.SpecifierKind, bool) {
	switch text {
	case "namespace":
		return ast.SpecifierNamespace, true
	case "default":
		return ast.SpecifierDefault, true
	case "named":
		return ast.SpecifierNamed, true
	}
	return 0, false
}

func maybeName(text *string) ast.MaybeName {
	if text == nil {
		return ast.MaybeName{}
	}
	return ast.SomeName(*text)
}

func parseSpecifier(s SnapshotSpecifier) (ast.Specifier, error) {
	kind, ok := parseSpecifierKind(s.Kind)
	if !ok {
		return ast.Specifier{}, fmt.Errorf("unknown specifier kind %q", s.Kind)
	}
	if s.Local == "" {
		return ast.Specifier{}, fmt.Errorf("%s specifier without a local name", s.Kind)
	}
	return ast.Specifier{Kind: kind, Local: s.Local, Imported: maybeName(s.Imported)}, nil
}

func parseRef(r SnapshotRef, sourceLen int) (ast.SpecifierRef, error) {
	kind, ok := parseSpecifierKind(r.Kind)
	if !ok {
		return ast.SpecifierRef{}, fmt.Errorf("unknown reference kind %q", r.Kind)
	}
	if r.Start < 0 || r.End < r.Start || r.End > sourceLen {
		return ast.SpecifierRef{}, fmt.Errorf("reference to %q has invalid range [%d, %d) for a source of length %d",
			r.Local, r.Start, r.End, sourceLen)
	}
	start, err := safecast.Conv[int32](r.Start)
	if err != nil {
		return ast.SpecifierRef{}, err
	}
	length, err := safecast.Conv[int32](r.End - r.Start)
	if err != nil {
		return ast.SpecifierRef{}, err
	}
	return ast.SpecifierRef{
		Range:     logger.Range{Loc: logger.Loc{Start: start}, Len: length},
		Local:     r.Local,
		IDs:       r.IDs,
		Kind:      kind,
		Call:      r.Call,
		Shorthand: r.Shorthand,
	}, nil
}

func (sb *snapshotBuilder) symbol(s SnapshotSymbol) (ast.SymbolRef, error) {
	kind, ok := ast.ParseSymbolRefKind(s.Kind)
	if !ok {
		return ast.SymbolRef{}, fmt.Errorf("unknown symbol kind %q", s.Kind)
	}
	module, err := sb.lookup(s.Module, "symbol")
	if err != nil {
		return ast.SymbolRef{}, err
	}
	importer := module
	if s.Importer != "" {
		if importer, err = sb.lookup(s.Importer, "symbol importer"); err != nil {
			return ast.SymbolRef{}, err
		}
	}
	switch kind {
	case ast.SymbolDirect:
		return ast.DirectSymbol(module, s.Local), nil
	case ast.SymbolImportDefault:
		return ast.IndirectImportDefault(module, s.Local, importer), nil
	case ast.SymbolImport:
		return ast.IndirectImport(module, s.Local, maybeName(s.Imported), importer), nil
	default:
		return ast.IndirectReExport(module, s.Local, maybeName(s.Imported), importer), nil
	}
}
