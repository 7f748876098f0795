// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 5 (§8): security preset behavior.
func TestValidate_StandardPreset_BlocksRmRfRoot(t *testing.T) {
	cfg := NewConfig(PresetStandard, Config{})
	p := New(cfg)
	res := p.Validate("rm -rf /", "/home/user/project")
	assert.False(t, res.Allowed)
	assert.Equal(t, CodeBlockedCommand, res.Code)
}

func TestValidate_StandardPreset_AllowsPlainList(t *testing.T) {
	cfg := NewConfig(PresetStandard, Config{})
	p := New(cfg)
	res := p.Validate("ls -la", "/home/user/project")
	assert.True(t, res.Allowed)
}

func TestValidate_ReadOnlyMode_BlocksRedirect(t *testing.T) {
	cfg := NewConfig(PresetStandard, Config{ReadOnlyMode: true})
	p := New(cfg)
	res := p.Validate("echo x > f", "/home/user/project")
	assert.False(t, res.Allowed)
	assert.Equal(t, CodeReadOnlyMode, res.Code)
}

func TestValidate_RestrictedPreset_DeniesEverything(t *testing.T) {
	cfg := NewConfig(PresetRestricted, Config{})
	p := New(cfg)
	assert.False(t, p.Validate("ls", "/tmp").Allowed)
	assert.False(t, p.Validate("cat file.txt", "/tmp").Allowed)
}

func TestValidate_UnrestrictedPreset_AllowsDestructiveWithoutConfirmation(t *testing.T) {
	cfg := NewConfig(PresetUnrestricted, Config{})
	p := New(cfg)
	res := p.Validate("rm -rf /tmp/build", "/tmp")
	assert.True(t, res.Allowed)
	assert.False(t, res.RequiresConfirmation)
}

func TestMatchesBlockedPattern_RmBlocksFileButNotRmdir(t *testing.T) {
	blocked := []string{"rm"}
	assert.True(t, matchesBlockedPattern("rm file.txt", blocked))
	assert.True(t, matchesBlockedPattern("rm", blocked))
	assert.False(t, matchesBlockedPattern("rmdir old", blocked))
}

func TestMatchesBlockedPattern_RmRfRootIsExactOrPrefixOnly(t *testing.T) {
	blocked := []string{"rm -rf /"}
	assert.True(t, matchesBlockedPattern("rm -rf /", blocked))
	assert.False(t, matchesBlockedPattern("rm -rf /home/user", blocked))
}

func TestMatchesBlockedPattern_RegexPrefix(t *testing.T) {
	blocked := []string{"re:^mkfs"}
	assert.True(t, matchesBlockedPattern("mkfs.ext4 /dev/sda1", blocked))
	assert.False(t, matchesBlockedPattern("echo mkfs", blocked))
}

func TestIsWriteCommand(t *testing.T) {
	assert.True(t, IsWriteCommand("rm file.txt"))
	assert.True(t, IsWriteCommand("echo hi > out.txt"))
	assert.True(t, IsWriteCommand("git commit -m x"))
	assert.False(t, IsWriteCommand("ls -la"))
	assert.False(t, IsWriteCommand("cat file.txt"))
	assert.False(t, IsWriteCommand("rmdir empty"))
}

func TestIsDestructiveCommand(t *testing.T) {
	assert.True(t, IsDestructiveCommand("rm -rf /var/data"))
	assert.True(t, IsDestructiveCommand(":(){ :|:& };:"))
	assert.False(t, IsDestructiveCommand("ls -la"))
}

func TestExtractPaths(t *testing.T) {
	paths := ExtractPaths("cp /etc/hosts --file=/tmp/out.txt")
	assert.Contains(t, paths, "/etc/hosts")
	assert.Contains(t, paths, "/tmp/out.txt")
}

func TestValidate_SafeDirectories_BlocksOutsidePath(t *testing.T) {
	cfg := NewConfig(PresetStandard, Config{SafeDirectories: []string{"/home/user/project"}})
	p := New(cfg)
	res := p.Validate("cat /etc/passwd", "/home/user/project")
	assert.False(t, res.Allowed)
	assert.Equal(t, CodeUnsafePath, res.Code)
}

func TestValidate_SafeDirectories_AllowsInsidePath(t *testing.T) {
	cfg := NewConfig(PresetStandard, Config{SafeDirectories: []string{"/home/user/project"}})
	p := New(cfg)
	res := p.Validate("cat /home/user/project/src/main.go", "/home/user/project")
	assert.True(t, res.Allowed)
}

func TestValidate_RequiresConfirmationForDestructive(t *testing.T) {
	cfg := NewConfig(PresetStandard, Config{})
	p := New(cfg)
	res := p.Validate("rm -rf /tmp/scratch", "/home/user/project")
	assert.True(t, res.Allowed)
	assert.True(t, res.RequiresConfirmation)
}

func TestAudit_RecordsAndFilters(t *testing.T) {
	cfg := NewConfig(PresetStandard, Config{EnableAudit: true})
	p := New(cfg)
	p.Validate("ls -la", "/tmp")
	p.Validate("rm -rf /", "/tmp")

	all := p.AuditLog(nil)
	require.Len(t, all, 2)

	allowedOnly := true
	allowed := p.AuditLog(&allowedOnly)
	require.Len(t, allowed, 1)
	assert.Equal(t, "ls -la", allowed[0].Command)
}

func TestAudit_ClearEmptiesLog(t *testing.T) {
	cfg := NewConfig(PresetStandard, Config{EnableAudit: true})
	p := New(cfg)
	p.Validate("ls -la", "/tmp")
	n := p.ClearAuditLog()
	assert.Equal(t, 1, n)
	assert.Empty(t, p.AuditLog(nil))
}

func TestPermissionQueue_ApproveAndDeny(t *testing.T) {
	p := New(NewConfig(PresetStandard, Config{}))

	id := p.RequestPermission("rm -rf /tmp/build", "/tmp")
	status, ok := p.PermissionStatus(id)
	require.True(t, ok)
	assert.Equal(t, "pending", status)

	assert.True(t, p.ApprovePermission(id))
	status, _ = p.PermissionStatus(id)
	assert.Equal(t, "approved", status)

	id2 := p.RequestPermission("rm -rf /tmp/other", "/tmp")
	assert.True(t, p.DenyPermission(id2, "not safe"))
	status, _ = p.PermissionStatus(id2)
	assert.Equal(t, "denied", status)

	_, ok = p.PermissionStatus("missing")
	assert.False(t, ok)
}

func TestTestCommand_DoesNotAudit(t *testing.T) {
	cfg := NewConfig(PresetStandard, Config{EnableAudit: true})
	p := New(cfg)
	p.TestCommand("ls -la", "/tmp")
	assert.Empty(t, p.AuditLog(nil))
}
