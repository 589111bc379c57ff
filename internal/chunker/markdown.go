// Package chunker splits long texts into embedding-sized pieces.
package chunker

import (
	"fmt"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Chunk is one piece of a document with its section context.
type Chunk struct {
	Index      int    // Position in document (0, 1, 2...)
	HeaderPath string // Hierarchy: "# Doc Title > ## Section Name"
	Content    string // Chunk text WITH header path prepended, used for embedding
	RawContent string // Chunk text without header prefix, stored for display
}

// Chunker splits markdown documents at H1/H2 boundaries and then caps every
// section at a maximum size. Plain text is a single section.
type Chunker struct {
	md      goldmark.Markdown
	maxSize int
}

// DefaultMaxSize is the section size cap in runes.
const DefaultMaxSize = 500

// New creates a chunker. maxSize <= 0 uses DefaultMaxSize.
func New(maxSize int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Chunker{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
		maxSize: maxSize,
	}
}

type section struct {
	headerPath string
	content    string
}

// Split chunks source. Whitespace-only input yields no chunks.
func (c *Chunker) Split(source []byte) ([]Chunk, error) {
	sections, err := c.sections(source)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	for _, s := range sections {
		for _, piece := range SplitBySize(s.content, c.maxSize) {
			content := piece
			if s.headerPath != "" {
				content = s.headerPath + "\n\n" + piece
			}
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				HeaderPath: s.headerPath,
				Content:    content,
				RawContent: piece,
			})
		}
	}
	return chunks, nil
}

// sections cuts the document at top-level H1 and H2 headings. Text before
// the first heading becomes a section without a header path.
func (c *Chunker) sections(source []byte) ([]section, error) {
	doc := c.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}
	paths := make(map[string]string)
	collectPaths(tree.Items, nil, paths)

	var headings []*ast.Heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= 2 && h.Lines().Len() > 0 {
			headings = append(headings, h)
		}
	}

	whole := strings.TrimSpace(string(source))
	if len(headings) == 0 {
		if whole == "" {
			return nil, nil
		}
		return []section{{content: whole}}, nil
	}

	var out []section
	first := lineStart(source, headings[0].Lines().At(0).Start)
	if pre := strings.TrimSpace(string(source[:first])); pre != "" {
		out = append(out, section{content: pre})
	}

	for i, h := range headings {
		start := lineStart(source, h.Lines().At(0).Start)
		end := len(source)
		if i+1 < len(headings) {
			end = lineStart(source, headings[i+1].Lines().At(0).Start)
		}
		content := strings.TrimSpace(string(source[start:end]))
		if content == "" {
			continue
		}
		out = append(out, section{
			headerPath: paths[headingID(h)],
			content:    content,
		})
	}
	return out, nil
}

// collectPaths maps every heading id to its formatted header path.
func collectPaths(items toc.Items, ancestors []string, out map[string]string) {
	for _, item := range items {
		path := append(slices.Clone(ancestors), string(item.Title))
		if len(item.ID) > 0 {
			out[string(item.ID)] = formatHeaderPath(path)
		}
		collectPaths(item.Items, path, out)
	}
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	parts := make([]string, 0, len(path))
	for i, segment := range path {
		if segment == "" {
			continue
		}
		parts = append(parts, strings.Repeat("#", i+1)+" "+segment)
	}
	return strings.Join(parts, " > ")
}

func headingID(h *ast.Heading) string {
	v, ok := h.AttributeString("id")
	if !ok {
		return ""
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return ""
}

// lineStart returns the offset of the line containing pos, so ATX markers
// stay with their section.
func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}
