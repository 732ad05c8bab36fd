package source

import (
	"path/filepath"
	"sort"
	"strings"
)

// Span identifies a half-open byte range [Start, End) in a source file.
// Every AST node and every emitted instruction carries one.
type Span struct {
	Start int
	End   int
}

// NoSpan is the zero span, used for synthesized nodes and implicit
// instructions (e.g. the final return of a script).
var NoSpan = Span{}

// IsZero reports whether the span carries no position information.
func (s Span) IsZero() bool {
	return s.Start == 0 && s.End == 0
}

// Merge returns the smallest span covering both s and other.
func (s Span) Merge(other Span) Span {
	if s.IsZero() {
		return other
	}
	if other.IsZero() {
		return s
	}
	out := s
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

// File represents a source file with its content and metadata.
type File struct {
	Name    string // Display name (e.g. "script.em", "<eval>")
	Path    string // Full file path (empty for eval/embedded input)
	Content string // The source text

	lineStarts []int // Cached byte offset of each line start (lazy)
}

// NewFile creates a source file.
func NewFile(name, path, content string) *File {
	return &File{Name: name, Path: path, Content: content}
}

// NewEvalFile creates a source file for embedded/eval input.
func NewEvalFile(content string) *File {
	return &File{Name: "<eval>", Content: content}
}

// FromFile creates a File from a file path and content.
func FromFile(filePath, content string) *File {
	return &File{Name: filepath.Base(filePath), Path: filePath, Content: content}
}

// DisplayPath returns the best path for display (prefers Path, falls back to Name).
func (f *File) DisplayPath() string {
	if f.Path != "" {
		return f.Path
	}
	return f.Name
}

// Position converts a byte offset into a 1-based line and column.
func (f *File) Position(offset int) (line, column int) {
	starts := f.starts()
	// Last line start <= offset.
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - starts[i] + 1
}

// Line returns the 1-based line of text containing the given byte offset,
// without its trailing newline.
func (f *File) Line(offset int) string {
	starts := f.starts()
	line, _ := f.Position(offset)
	start := starts[line-1]
	end := len(f.Content)
	if line < len(starts) {
		end = starts[line] - 1
	}
	return strings.TrimRight(f.Content[start:end], "\r")
}

func (f *File) starts() []int {
	if f.lineStarts == nil {
		f.lineStarts = []int{0}
		for i := 0; i < len(f.Content); i++ {
			if f.Content[i] == '\n' {
				f.lineStarts = append(f.lineStarts, i+1)
			}
		}
	}
	return f.lineStarts
}
