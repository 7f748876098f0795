// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package wire

import "testing"

import "github.com/stretchr/testify/assert"

func TestIsApproval(t *testing.T) {
	for _, s := range []string{"y", "Yes", " approve ", "ALLOW", "ok", "proceed", "continue"} {
		assert.True(t, IsApproval(s), "expected %q to be an approval", s)
	}
	assert.False(t, IsApproval("no"))
	assert.False(t, IsApproval("maybe"))
}

func TestIsDenial(t *testing.T) {
	for _, s := range []string{"n", "No", " deny ", "REJECT"} {
		assert.True(t, IsDenial(s), "expected %q to be a denial", s)
	}
	assert.False(t, IsDenial("yes"))
	assert.False(t, IsDenial(""))
}

func TestContentBlock_IsToolUse(t *testing.T) {
	assert.True(t, ContentBlock{Type: "tool_use"}.IsToolUse())
	assert.False(t, ContentBlock{Type: "text"}.IsToolUse())
}
