package test

import (
	"fmt"
	"strings"

	"github.com/esmlink/esmlink/internal/logger"
)

// Unchanged runs longer than this are collapsed so that a failing comparison
// of a long module prologue stays readable
const diffContextLines = 3

func Diff(old string, new string, color bool) string {
	lines := diffRec(nil, strings.Split(old, "\n"), strings.Split(new, "\n"))
	return strings.Join(renderDiff(lines, color), "\n")
}

type diffOp uint8

const (
	diffSame diffOp = iota
	diffRemoved
	diffAdded
)

type diffLine struct {
	text string
	op   diffOp
}

// This is a simple recursive line-by-line diff implementation
func diffRec(result []diffLine, old []string, new []string) []diffLine {
	o, n, common := lcSubstr(old, new)

	if common == 0 {
		// Everything changed
		for _, line := range old {
			result = append(result, diffLine{line, diffRemoved})
		}
		for _, line := range new {
			result = append(result, diffLine{line, diffAdded})
		}
		return result
	}

	// Something in the middle stayed the same
	result = diffRec(result, old[:o], new[:n])
	for _, line := range old[o : o+common] {
		result = append(result, diffLine{line, diffSame})
	}
	return diffRec(result, old[o+common:], new[n+common:])
}

func renderDiff(lines []diffLine, color bool) []string {
	var result []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line.op == diffSame {
			// Find the end of this run of unchanged lines
			end := i
			for end < len(lines) && lines[end].op == diffSame {
				end++
			}
			if end-i > 2*diffContextLines+1 {
				for _, same := range lines[i : i+diffContextLines] {
					result = append(result, formatDiffLine(" ", same.text, logger.TerminalColors.Dim, color))
				}
				result = append(result, formatDiffLine(" ", fmt.Sprintf("... %d unchanged lines ...", end-i-2*diffContextLines), logger.TerminalColors.Dim, color))
				i = end - diffContextLines
			}
			result = append(result, formatDiffLine(" ", lines[i].text, logger.TerminalColors.Dim, color))
			continue
		}
		if line.op == diffRemoved {
			result = append(result, formatDiffLine("-", line.text, logger.TerminalColors.Red, color))
		} else {
			result = append(result, formatDiffLine("+", line.text, logger.TerminalColors.Green, color))
		}
	}
	return result
}

func formatDiffLine(prefix string, text string, colorCode string, color bool) string {
	if color {
		return fmt.Sprintf("%s%s%s%s", colorCode, prefix, text, logger.TerminalColors.Reset)
	}
	return prefix + text
}

// From: https://en.wikipedia.org/wiki/Longest_common_substring_problem
func lcSubstr(S []string, T []string) (int, int, int) {
	r := len(S)
	n := len(T)
	Lprev := make([]int, n)
	Lnext := make([]int, n)
	z := 0
	retI := 0
	retJ := 0

	for i := 0; i < r; i++ {
		for j := 0; j < n; j++ {
			if S[i] == T[j] {
				if j == 0 {
					Lnext[j] = 1
				} else {
					Lnext[j] = Lprev[j-1] + 1
				}
				if Lnext[j] > z {
					z = Lnext[j]
					retI = i + 1
					retJ = j + 1
				}
			} else {
				Lnext[j] = 0
			}
		}
		Lprev, Lnext = Lnext, Lprev
	}

	return retI - z, retJ - z, z
}
