// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// CheckAvailability verifies the configured assistant binary is on PATH and
// runnable, by invoking it with --version and a short timeout.
func CheckAvailability(ctx context.Context, binary string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("assistant binary %q not found on PATH: %w", binary, err)
	}

	cmd := exec.CommandContext(ctx, path, "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("assistant binary %q did not respond to --version: %w", binary, err)
	}
	return nil
}

// BuildArgs constructs the CLI argument vector that launches the assistant
// as a long-running process for one session, from the assistant config and a
// resume session id (empty for a fresh session). Turns are delivered over
// stdin afterward (§4.4, §4.9 step 2), not baked into argv, so the same
// process survives across a session's whole conversation.
func BuildArgs(resumeSessionID string, permissionMode string, allowedTools, disallowedTools []string, skipPermissions bool) []string {
	args := []string{"--output-format", "stream-json", "--input-format", "stream-json", "--verbose"}

	if resumeSessionID != "" {
		args = append(args, "--resume", resumeSessionID)
	}
	if permissionMode != "" {
		args = append(args, "--permission-mode", permissionMode)
	}
	if skipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	for _, t := range allowedTools {
		args = append(args, "--allowedTools", t)
	}
	for _, t := range disallowedTools {
		args = append(args, "--disallowedTools", t)
	}

	return args
}
