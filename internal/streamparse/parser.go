// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package streamparse turns the assistant's raw stdout bytes into typed
// chunks, recovering partial markdown and partial JSON across chunk
// boundaries. It never errors: a JSON fragment that does not parse is dropped
// without producing output. Dropped fragments are not counted.
package streamparse

import (
	"regexp"
	"strings"
)

// Chunk kinds emitted by Parser.Parse.
const (
	KindText    = "text"
	KindCode    = "code"
	KindSection = "section"
	KindHeader  = "header"
	KindList    = "list"
	KindDivider = "divider"
	KindComplete = "complete"
)

// Chunk is one unit of parsed output.
type Chunk struct {
	Kind     string
	Content  string
	Language string // set for KindCode
	Level    int    // set for KindSection/KindHeader
}

var (
	headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	fencePattern  = regexp.MustCompile("^```\\s*([A-Za-z0-9_+-]*)\\s*$")
	bulletPattern = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s+`)
)

// knownSections are the labels recognized as section headers when a line
// ends in ":" (§4.1).
var knownSections = map[string]bool{
	"Plan": true, "Code": true, "Summary": true,
	"Steps": true, "Analysis": true, "Result": true,
}

// Parser converts raw byte chunks into a sequence of typed Chunks. It is not
// safe for concurrent use; callers serialize calls per session.
type Parser struct {
	lineBuf strings.Builder // partial last line carried across calls

	inCodeBlock  bool
	codeLanguage string
	codeLines    []string

	pendingText []string // accumulated non-blank text lines awaiting a blank line

	pendingList []string // accumulated list items awaiting a non-list line

	malformedCount int
	lastMalformed  string

	jsonBuf strings.Builder // buffered partial JSON for the stream-JSON pathway
}

// New creates a ready-to-use Parser.
func New() *Parser {
	return &Parser{}
}

// Reset clears all buffered state.
func (p *Parser) Reset() {
	p.lineBuf.Reset()
	p.inCodeBlock = false
	p.codeLanguage = ""
	p.codeLines = nil
	p.pendingText = nil
	p.pendingList = nil
	p.jsonBuf.Reset()
}

// MalformedCount returns the parser's malformed-fragment counter. Nothing in
// the package increments it, so it is always 0.
func (p *Parser) MalformedCount() int { return p.malformedCount }

// Parse consumes a raw byte chunk and returns the chunks it completes.
// Partial lines and open code blocks are buffered until a terminator or
// isFinal arrives.
func (p *Parser) Parse(data []byte, isFinal bool) []Chunk {
	var out []Chunk

	p.lineBuf.WriteString(string(data))
	buffered := p.lineBuf.String()
	p.lineBuf.Reset()

	lines := strings.Split(buffered, "\n")
	// The last element is a partial line unless the input ended in "\n" or
	// this is the final call (in which case everything is complete).
	complete := lines
	if !isFinal && len(lines) > 0 {
		complete = lines[:len(lines)-1]
		p.lineBuf.WriteString(lines[len(lines)-1])
	}

	for _, line := range complete {
		out = append(out, p.consumeLine(line)...)
	}

	if isFinal {
		if p.lineBuf.Len() > 0 {
			out = append(out, p.consumeLine(p.lineBuf.String())...)
			p.lineBuf.Reset()
		}
		out = append(out, p.flushPending()...)
		if p.inCodeBlock {
			// Best-effort emit of whatever content exists (§4.1).
			out = append(out, Chunk{Kind: KindCode, Language: p.codeLanguage, Content: strings.Join(p.codeLines, "\n")})
			p.inCodeBlock = false
			p.codeLanguage = ""
			p.codeLines = nil
		}
		out = append(out, Chunk{Kind: KindComplete, Content: ""})
	}

	return out
}

func (p *Parser) consumeLine(line string) []Chunk {
	var out []Chunk

	if p.inCodeBlock {
		if strings.TrimSpace(line) == "```" {
			out = append(out, Chunk{Kind: KindCode, Language: p.codeLanguage, Content: strings.Join(p.codeLines, "\n")})
			p.inCodeBlock = false
			p.codeLanguage = ""
			p.codeLines = nil
			return out
		}
		p.codeLines = append(p.codeLines, line)
		return out
	}

	if m := fencePattern.FindStringSubmatch(line); m != nil {
		out = append(out, p.flushPending()...)
		p.inCodeBlock = true
		p.codeLanguage = m[1]
		if p.codeLanguage == "" {
			p.codeLanguage = "text"
		}
		p.codeLines = nil
		return out
	}

	trimmed := strings.TrimRight(line, " \t")

	if strings.TrimSpace(trimmed) == "" {
		out = append(out, p.flushPending()...)
		return out
	}

	if strings.TrimSpace(trimmed) == "---" {
		out = append(out, p.flushPending()...)
		out = append(out, Chunk{Kind: KindDivider})
		return out
	}

	if m := headerPattern.FindStringSubmatch(trimmed); m != nil {
		out = append(out, p.flushPending()...)
		out = append(out, Chunk{Kind: KindHeader, Level: len(m[1]), Content: m[2]})
		return out
	}

	if label := sectionLabel(trimmed); label != "" {
		out = append(out, p.flushPending()...)
		out = append(out, Chunk{Kind: KindSection, Level: 1, Content: label})
		return out
	}

	if bulletPattern.MatchString(trimmed) {
		out = append(out, p.flushTextOnly()...)
		p.pendingList = append(p.pendingList, trimmed)
		return out
	}

	// Plain text line: if a list was in progress, flush it first.
	out = append(out, p.flushListOnly()...)
	p.pendingText = append(p.pendingText, trimmed)
	return out
}

// sectionLabel returns the recognized section label for a line ending in
// ":" (e.g. "Plan:"), or "" if it doesn't match a known section.
func sectionLabel(line string) string {
	if !strings.HasSuffix(line, ":") {
		return ""
	}
	label := strings.TrimSuffix(line, ":")
	if knownSections[label] {
		return label
	}
	return ""
}

func (p *Parser) flushPending() []Chunk {
	var out []Chunk
	out = append(out, p.flushTextOnly()...)
	out = append(out, p.flushListOnly()...)
	return out
}

func (p *Parser) flushTextOnly() []Chunk {
	if len(p.pendingText) == 0 {
		return nil
	}
	content := strings.Join(p.pendingText, "\n")
	p.pendingText = nil
	return []Chunk{{Kind: KindText, Content: content}}
}

func (p *Parser) flushListOnly() []Chunk {
	if len(p.pendingList) == 0 {
		return nil
	}
	content := strings.Join(p.pendingList, "\n")
	p.pendingList = nil
	return []Chunk{{Kind: KindList, Content: content}}
}
