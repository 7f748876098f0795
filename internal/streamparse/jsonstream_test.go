// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidCompleteJSON(t *testing.T) {
	assert.True(t, IsValidCompleteJSON(`{"type":"result"}`))
	assert.True(t, IsValidCompleteJSON(`[1,2,3]`))
	assert.False(t, IsValidCompleteJSON(`{"type":"resu`))
	assert.False(t, IsValidCompleteJSON(``))
}

func TestExtractCompleteObjectsFromLine(t *testing.T) {
	line := `{"a":1}{"b":"x}y"}garbage{"c":[1,2]}`
	objs := ExtractCompleteObjectsFromLine(line)
	require.Len(t, objs, 3)
	assert.JSONEq(t, `{"a":1}`, objs[0])
	assert.JSONEq(t, `{"b":"x}y"}`, objs[1])
	assert.JSONEq(t, `{"c":[1,2]}`, objs[2])
}

func TestFindLastCompleteJSONStart_NoDangling(t *testing.T) {
	s := `{"a":1}{"b":2}`
	assert.Equal(t, len(s), FindLastCompleteJSONStart(s))
}

func TestFindLastCompleteJSONStart_TrailingPartial(t *testing.T) {
	s := `{"a":1}{"b":2`
	idx := FindLastCompleteJSONStart(s)
	assert.Equal(t, `{"a":1}`, s[:idx])
}

func TestExtractCompleteObjectsFromArray(t *testing.T) {
	objs := ExtractCompleteObjectsFromArray(`[{"a":1},{"b":2}]`)
	require.Len(t, objs, 2)
	assert.JSONEq(t, `{"a":1}`, objs[0])
	assert.JSONEq(t, `{"b":2}`, objs[1])
}

func TestExtractCompleteObjectsFromArray_Invalid(t *testing.T) {
	assert.Nil(t, ExtractCompleteObjectsFromArray(`not json`))
}

func TestJSONStream_FragmentedAcrossFeeds(t *testing.T) {
	js := NewJSONStream()

	objs := js.Feed([]byte(`{"type":"system","session`))
	assert.Empty(t, objs)

	objs = js.Feed([]byte("_id\":\"s1\"}\n{\"type\":\"result\",\"result\":\"Don"))
	require.Len(t, objs, 1)
	assert.JSONEq(t, `{"type":"system","session_id":"s1"}`, objs[0])

	objs = js.Feed([]byte(`e"}` + "\n"))
	require.Len(t, objs, 1)
	assert.JSONEq(t, `{"type":"result","result":"Done"}`, objs[0])
}

func TestJSONStream_MultipleObjectsPerLine(t *testing.T) {
	js := NewJSONStream()
	objs := js.Feed([]byte(`{"a":1}{"b":2}` + "\n"))
	require.Len(t, objs, 2)
}
