// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"encoding/json"
	"strings"
)

// JSONStream recovers complete top-level JSON objects from a byte stream
// that may fragment objects across chunk boundaries, and may emit either
// newline-delimited objects or a single top-level JSON array (§4.1).
type JSONStream struct {
	buf strings.Builder
}

// NewJSONStream creates a ready-to-use JSONStream.
func NewJSONStream() *JSONStream { return &JSONStream{} }

// Reset clears the pending partial-object buffer.
func (j *JSONStream) Reset() { j.buf.Reset() }

// Feed appends raw bytes and returns every fully-terminated top-level JSON
// object found so far (as raw JSON text), retaining any trailing partial
// object in the internal buffer.
func (j *JSONStream) Feed(data []byte) []string {
	j.buf.Write(data)
	content := j.buf.String()

	var objects []string
	for {
		line, rest, hasNewline := cutLine(content)
		if !hasNewline {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			objects = append(objects, ExtractCompleteObjectsFromLine(trimmed)...)
		}
		content = rest
	}

	// content now holds the remainder after the last newline (or everything,
	// if there was no newline at all). Try to pull complete objects out of it
	// without discarding a trailing partial object.
	start := FindLastCompleteJSONStart(content)
	if start > 0 {
		complete := content[:start]
		objects = append(objects, ExtractCompleteObjectsFromLine(complete)...)
		content = content[start:]
	} else if trimmed := strings.TrimSpace(content); IsValidCompleteJSON(trimmed) {
		if strings.HasPrefix(trimmed, "[") {
			// The assistant emitted its whole turn as one top-level JSON
			// array rather than newline-delimited objects (§4.1); unwrap it
			// so each element reaches the caller as its own event.
			if elems := ExtractCompleteObjectsFromArray(trimmed); elems != nil {
				objects = append(objects, elems...)
			} else {
				objects = append(objects, trimmed)
			}
		} else {
			objects = append(objects, trimmed)
		}
		content = ""
	}

	j.buf.Reset()
	j.buf.WriteString(content)

	// A complete top-level array is unwrapped so each element reaches the
	// caller as its own object.
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		if strings.HasPrefix(o, "[") {
			if elems := ExtractCompleteObjectsFromArray(o); elems != nil {
				out = append(out, elems...)
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

func cutLine(s string) (line, rest string, ok bool) {
	idx := strings.IndexByte(s, '\n')
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}

// IsValidCompleteJSON reports whether s is a syntactically complete JSON value.
func IsValidCompleteJSON(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return json.Valid([]byte(s))
}

// ExtractCompleteObjectsFromLine scans s (typically one line, but works on
// any string) for every balanced top-level JSON object or array, respecting
// string escaping, and returns their raw text. Content outside them is ignored.
func ExtractCompleteObjectsFromLine(s string) []string {
	var out []string
	depth := 0
	inString := false
	escaped := false
	start := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			if depth == 0 {
				start = i
			}
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := s[start : i+1]
					if IsValidCompleteJSON(candidate) {
						out = append(out, candidate)
					}
					start = -1
				}
			}
		}
	}
	return out
}

// FindLastCompleteJSONStart scans s for the start offset of a trailing
// incomplete top-level JSON value (the point up to which everything before
// it is known-complete). Returns 0 if no complete prefix can be separated
// from a trailing partial object, or len(s) if s has no open object at all.
func FindLastCompleteJSONStart(s string) int {
	depth := 0
	inString := false
	escaped := false
	lastCompleteEnd := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
				if depth == 0 {
					lastCompleteEnd = i + 1
				}
			}
		}
	}

	if depth == 0 {
		// No dangling open object; everything is complete (or there is no
		// JSON here at all).
		return len(s)
	}
	return lastCompleteEnd
}

// ExtractCompleteObjectsFromArray unmarshals s as a top-level JSON array and
// returns the raw JSON text of each element. Returns nil if s is not a valid
// JSON array.
func ExtractCompleteObjectsFromArray(s string) []string {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, string(r))
	}
	return out
}
