// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_EmptyFinal_EmitsComplete(t *testing.T) {
	p := New()
	chunks := p.Parse(nil, true)
	require.Len(t, chunks, 1)
	assert.Equal(t, KindComplete, chunks[0].Kind)
}

func TestParser_ParagraphSplitting(t *testing.T) {
	p := New()
	chunks := p.Parse([]byte("line one\nline two\n\nline three\n"), true)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, KindText, chunks[0].Kind)
	assert.Equal(t, "line one\nline two", chunks[0].Content)
	assert.Equal(t, KindText, chunks[1].Kind)
	assert.Equal(t, "line three", chunks[1].Content)
}

func TestParser_MarkdownHeader(t *testing.T) {
	p := New()
	chunks := p.Parse([]byte("## Title\n"), true)
	require.NotEmpty(t, chunks)
	assert.Equal(t, KindHeader, chunks[0].Kind)
	assert.Equal(t, 2, chunks[0].Level)
	assert.Equal(t, "Title", chunks[0].Content)
}

func TestParser_SectionLabel(t *testing.T) {
	p := New()
	chunks := p.Parse([]byte("Plan:\n"), true)
	require.NotEmpty(t, chunks)
	assert.Equal(t, KindSection, chunks[0].Kind)
	assert.Equal(t, "Plan", chunks[0].Content)
}

func TestParser_UnrecognizedColonLine_IsText(t *testing.T) {
	p := New()
	chunks := p.Parse([]byte("Not a section:\n"), true)
	require.NotEmpty(t, chunks)
	assert.Equal(t, KindText, chunks[0].Kind)
}

func TestParser_Divider(t *testing.T) {
	p := New()
	chunks := p.Parse([]byte("before\n---\nafter\n"), true)
	var kinds []string
	for _, c := range chunks {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, KindDivider)
}

func TestParser_List(t *testing.T) {
	p := New()
	chunks := p.Parse([]byte("- one\n- two\n- three\n"), true)
	require.NotEmpty(t, chunks)
	assert.Equal(t, KindList, chunks[0].Kind)
	assert.Equal(t, "- one\n- two\n- three", chunks[0].Content)
}

// Scenario 3 (§8): code extraction with two fenced blocks in one final call.
func TestParser_CodeExtraction_TwoBlocks(t *testing.T) {
	p := New()
	input := "Here is code:\n```javascript\nconst x = 1;\n```\nAnd:\n```python\nprint('hi')\n```"
	chunks := p.Parse([]byte(input), true)

	var code []Chunk
	for _, c := range chunks {
		if c.Kind == KindCode {
			code = append(code, c)
		}
	}
	require.Len(t, code, 2)
	assert.Equal(t, "javascript", code[0].Language)
	assert.Equal(t, "const x = 1;", code[0].Content)
	assert.Equal(t, "python", code[1].Language)
	assert.Equal(t, "print('hi')", code[1].Content)
}

// Scenario 4 (§8): incremental code block parsing split across three Parse calls.
func TestParser_IncrementalCodeBlock(t *testing.T) {
	p := New()

	first := p.Parse([]byte("Text before\n\n```java"), false)
	require.Len(t, first, 1)
	assert.Equal(t, KindText, first[0].Kind)
	assert.Equal(t, "Text before", first[0].Content)

	second := p.Parse([]byte("script\nclass Test {}"), false)
	assert.Empty(t, second)

	third := p.Parse([]byte("\n```\n\nText after"), true)
	require.Len(t, third, 3)
	assert.Equal(t, KindCode, third[0].Kind)
	assert.Equal(t, "javascript", third[0].Language)
	assert.Equal(t, "class Test {}", third[0].Content)
	assert.Equal(t, KindText, third[1].Kind)
	assert.Equal(t, "Text after", third[1].Content)
	assert.Equal(t, KindComplete, third[2].Kind)
}

func TestParser_UnterminatedCodeBlock_EmittedBestEffortOnFinal(t *testing.T) {
	p := New()
	chunks := p.Parse([]byte("```go\nfunc main() {}"), true)
	var code []Chunk
	for _, c := range chunks {
		if c.Kind == KindCode {
			code = append(code, c)
		}
	}
	require.Len(t, code, 1)
	assert.Equal(t, "go", code[0].Language)
	assert.Equal(t, "func main() {}", code[0].Content)
}

func TestParser_Reset(t *testing.T) {
	p := New()
	p.Parse([]byte("```go\npartial"), false)
	p.Reset()
	chunks := p.Parse([]byte("plain text\n"), true)
	require.NotEmpty(t, chunks)
	assert.Equal(t, KindText, chunks[0].Kind)
}
