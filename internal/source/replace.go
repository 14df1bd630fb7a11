package source

import (
	"fmt"
	"sort"

	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/logger"
)

type replacement struct {
	text  string
	start int32
	end   int32
}

// Collects span replacements over one module's text and applies them in a
// single pass. Replacements may be recorded in any order. They are applied by
// start offset and then by the order they were recorded, so the result only
// depends on the sequence of calls.
type ReplaceSource struct {
	source       *logger.Source
	replacements []replacement
}

func NewReplaceSource(source *logger.Source) *ReplaceSource {
	return &ReplaceSource{source: source}
}

func (s *ReplaceSource) Replace(r logger.Range, text string) {
	s.replacements = append(s.replacements, replacement{start: r.Loc.Start, end: r.End(), text: text})
}

func (s *ReplaceSource) Insert(loc logger.Loc, text string) {
	s.replacements = append(s.replacements, replacement{start: loc.Start, end: loc.Start, text: text})
}

func (s *ReplaceSource) Len() int {
	return len(s.replacements)
}

// Returns the rewritten text. Overlapping or out-of-bounds replacements are
// reported as errors since they mean two rewrites disagree about the source.
func (s *ReplaceSource) Source() (string, error) {
	contents := s.source.Contents
	sorted := make([]replacement, len(s.replacements))
	copy(sorted, s.replacements)
	sort.SliceStable(sorted, func(i int, j int) bool { return sorted[i].start < sorted[j].start })

	j := helpers.Joiner{}
	var prevEnd int32
	for i, r := range sorted {
		if r.start < 0 || r.end < r.start || int(r.end) > len(contents) {
			return "", fmt.Errorf("%s: replacement [%d, %d) is out of bounds", s.source.PrettyPath, r.start, r.end)
		}
		if i > 0 && r.start < prevEnd {
			prev := sorted[i-1]
			return "", fmt.Errorf("%s: replacement [%d, %d) overlaps [%d, %d)",
				s.source.PrettyPath, r.start, r.end, prev.start, prev.end)
		}
		j.AddString(contents[prevEnd:r.start])
		j.AddString(r.text)
		prevEnd = r.end
	}
	j.AddString(contents[prevEnd:])
	return j.Done(), nil
}
