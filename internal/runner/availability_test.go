// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAvailability_MissingBinary(t *testing.T) {
	err := CheckAvailability(context.Background(), "definitely-not-a-real-binary-xyz")
	assert.Error(t, err)
}

func TestBuildArgs_FreshSession(t *testing.T) {
	args := BuildArgs("", "default", nil, nil, false)
	assert.Contains(t, args, "--input-format")
	assert.Contains(t, args, "stream-json")
	assert.NotContains(t, args, "--print")
	assert.NotContains(t, args, "--resume")
}

func TestBuildArgs_ResumeAndTools(t *testing.T) {
	args := BuildArgs("sess-123", "acceptEdits", []string{"Bash"}, []string{"WebFetch"}, true)
	assert.Contains(t, args, "--resume")
	assert.Contains(t, args, "sess-123")
	assert.Contains(t, args, "--allowedTools")
	assert.Contains(t, args, "Bash")
	assert.Contains(t, args, "--disallowedTools")
	assert.Contains(t, args, "WebFetch")
	assert.Contains(t, args, "--dangerously-skip-permissions")
}
