package helpers

import "strings"

// This provides an efficient way to join lots of generated code snippets
// together. It avoids the cost of repeatedly reallocating as the buffer grows
// by measuring exactly how big the buffer should be and then allocating once.
type Joiner struct {
	strings  []string
	length   int
	lastByte byte
}

func (j *Joiner) AddString(data string) {
	if len(data) == 0 {
		return
	}
	j.lastByte = data[len(data)-1]
	j.strings = append(j.strings, data)
	j.length += len(data)
}

func (j *Joiner) LastByte() byte {
	return j.lastByte
}

func (j *Joiner) Length() int {
	return j.length
}

func (j *Joiner) EnsureNewlineAtEnd() {
	if j.length > 0 && j.lastByte != '\n' {
		j.AddString("\n")
	}
}

func (j *Joiner) Done() string {
	if len(j.strings) == 1 {
		// No need to allocate if there was only a single string written
		return j.strings[0]
	}
	sb := strings.Builder{}
	sb.Grow(j.length)
	for _, item := range j.strings {
		sb.WriteString(item)
	}
	return sb.String()
}

func (j *Joiner) Contains(s string) bool {
	for _, item := range j.strings {
		if strings.Contains(item, s) {
			return true
		}
	}
	return false
}
