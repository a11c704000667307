// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/term"
)

var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func markdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParserInstance
}

// Styling colors, in the ANSI 256 palette.
const (
	headingColor = lipgloss.Color("75")
	faintColor   = lipgloss.Color("245")
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// RenderMarkdown renders markdown for terminal display, wrapped to
// width. With color false the output is plain text with the same
// layout, for pipes and tests. Soft line breaks become spaces so
// hard-wrapped source reflows.
func RenderMarkdown(input string, width int, color bool) string {
	if input == "" {
		return ""
	}
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	lipRenderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(profile))
	lipRenderer.SetColorProfile(profile)

	source := []byte(input)
	renderer := &markdownRenderer{
		source:      source,
		width:       width,
		color:       color,
		lipRenderer: lipRenderer,
	}
	document := markdownParser().Parser().Parse(text.NewReader(source))
	ast.Walk(document, renderer.walk)
	return strings.TrimRight(renderer.output.String(), "\n")
}

// HighlightJSON syntax-highlights JSON for a terminal. On failure it
// returns the input unchanged.
func HighlightJSON(input string) string {
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, input, "json", "terminal256", "monokai"); err != nil {
		return input
	}
	return buffer.String()
}

// markdownRenderer walks a goldmark AST, collecting each block's inline
// content and word-wrapping it when the block closes.
type markdownRenderer struct {
	source      []byte
	width       int
	color       bool
	lipRenderer *lipgloss.Renderer

	output strings.Builder
	inline strings.Builder

	// prefix is prepended to every line inside a list item; bullet
	// replaces it for the item's first line.
	prefix string
	bullet string

	boldCount   int
	italicCount int

	lists            []listState
	trailingNewlines int
}

type listState struct {
	ordered bool
	counter int
	tight   bool
	// indent is the width the current item added to the prefix.
	indent int
}

func (r *markdownRenderer) style() lipgloss.Style {
	return r.lipRenderer.NewStyle()
}

func (r *markdownRenderer) writeOutput(s string) {
	if s == "" {
		return
	}
	r.output.WriteString(s)
	trimmed := strings.TrimRight(s, "\n")
	newlines := len(s) - len(trimmed)
	if trimmed == "" {
		r.trailingNewlines += newlines
	} else {
		r.trailingNewlines = newlines
	}
}

func (r *markdownRenderer) ensureNewline() {
	if r.trailingNewlines < 1 && r.output.Len() > 0 {
		r.writeOutput("\n")
	}
}

func (r *markdownRenderer) ensureBlankLine() {
	if r.output.Len() == 0 {
		return
	}
	for r.trailingNewlines < 2 {
		r.writeOutput("\n")
	}
}

func (r *markdownRenderer) inTightList() bool {
	return len(r.lists) > 0 && r.lists[len(r.lists)-1].tight
}

// emit wraps content, prefixes each line and writes it as one block.
func (r *markdownRenderer) emit(content string) {
	width := max(r.width-len(r.prefix), 10)
	lines := strings.Split(ansi.Wrap(content, width, " ,.;-+|"), "\n")
	for index, line := range lines {
		prefix := r.prefix
		if index == 0 && r.bullet != "" {
			prefix, r.bullet = r.bullet, ""
		}
		r.writeOutput(prefix + line + "\n")
	}
}

func (r *markdownRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
			break
		}
		if content := r.inline.String(); content != "" {
			r.inline.Reset()
			r.emit(content)
			if !r.inTightList() {
				r.ensureBlankLine()
			}
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
			break
		}
		content := ansi.Strip(r.inline.String())
		r.inline.Reset()
		style := r.style().Bold(true)
		if node.(*ast.Heading).Level <= 2 {
			style = style.Foreground(headingColor)
		}
		r.ensureBlankLine()
		r.emit(style.Render(content))
		r.ensureBlankLine()

	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if entering {
			r.renderCode(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			r.lists = append(r.lists, listState{ordered: list.IsOrdered(), counter: list.Start, tight: list.IsTight})
		} else {
			r.lists = r.lists[:len(r.lists)-1]
			if !r.inTightList() {
				r.ensureBlankLine()
			}
		}

	case ast.KindListItem:
		if len(r.lists) == 0 {
			break
		}
		top := &r.lists[len(r.lists)-1]
		if entering {
			bullet := "- "
			if top.ordered {
				bullet = fmt.Sprintf("%d. ", top.counter)
				top.counter++
			}
			top.indent = len(bullet)
			r.bullet = r.prefix + bullet
			r.prefix += strings.Repeat(" ", top.indent)
		} else {
			r.prefix = r.prefix[:len(r.prefix)-top.indent]
			r.ensureNewline()
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			r.inline.WriteString(r.styledText(string(textNode.Segment.Value(r.source))))
			if textNode.SoftLineBreak() {
				r.inline.WriteString(" ")
			}
			if textNode.HardLineBreak() {
				r.inline.WriteString("\n")
			}
		}

	case ast.KindString:
		if entering {
			r.inline.WriteString(r.styledText(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		delta := 1
		if !entering {
			delta = -1
		}
		if node.(*ast.Emphasis).Level >= 2 {
			r.boldCount += delta
		} else {
			r.italicCount += delta
		}

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if textNode, ok := child.(*ast.Text); ok {
					code.Write(textNode.Segment.Value(r.source))
				}
			}
			r.inline.WriteString(r.style().Foreground(faintColor).Render(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if !entering {
			destination := string(node.(*ast.Link).Destination)
			if destination != "" {
				r.inline.WriteString(" " + r.style().Foreground(faintColor).Render("("+destination+")"))
			}
		}
	}

	return ast.WalkContinue, nil
}

func (r *markdownRenderer) styledText(content string) string {
	style := r.style()
	if r.boldCount > 0 {
		style = style.Bold(true)
	}
	if r.italicCount > 0 {
		style = style.Italic(true)
	}
	return style.Render(content)
}

func (r *markdownRenderer) renderCode(node ast.Node) {
	var code strings.Builder
	lines := node.Lines()
	for index := range lines.Len() {
		segment := lines.At(index)
		code.Write(segment.Value(r.source))
	}

	rendered := code.String()
	language := ""
	if fenced, ok := node.(*ast.FencedCodeBlock); ok {
		language = string(fenced.Language(r.source))
	}
	if r.color && language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, rendered, language, "terminal256", "monokai"); err == nil {
			rendered = buffer.String()
		}
	}

	r.ensureBlankLine()
	for _, line := range strings.Split(strings.TrimRight(rendered, "\n"), "\n") {
		r.writeOutput(r.prefix + "    " + line + "\n")
	}
	r.ensureBlankLine()
}
