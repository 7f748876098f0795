// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package security implements the command-security policy (C3): preset
// bundles, command/path validation, write/destructive detection, and the
// append-only audit log and pending human-approval queue.
package security

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Policy error codes (§7).
const (
	CodeBlockedCommand = "BLOCKED_COMMAND"
	CodeReadOnlyMode   = "READONLY_MODE"
	CodeUnsafePath     = "UNSAFE_PATH"
)

// Preset names (§4.3).
const (
	PresetUnrestricted = "unrestricted"
	PresetStandard     = "standard"
	PresetRestricted   = "restricted"
)

// standardBlocked is the blocked-command list baked into the "standard" preset.
var standardBlocked = []string{
	"rm -rf /",
	"re:^mkfs",
	"dd",
	"format",
	"re:^:\\(\\)\\s*\\{\\s*:\\|:&\\s*\\}\\s*;:",
}

// Config is the immutable policy configuration (§4.3).
type Config struct {
	Preset              string
	BlockedCommands     []string
	SafeDirectories     []string
	RequireConfirmation bool
	ReadOnlyMode        bool
	EnableAudit         bool
	MaxFileSize         int64
	AuditCapacity       int
}

// NewConfig builds a Config for a named preset, applying the exact baked
// behaviors in §4.3. SafeDirectories and MaxFileSize carry over from the
// caller-supplied base regardless of preset.
func NewConfig(preset string, base Config) Config {
	cfg := base
	cfg.Preset = preset
	switch preset {
	case PresetUnrestricted:
		cfg.BlockedCommands = nil
		cfg.RequireConfirmation = false
		cfg.ReadOnlyMode = false
	case PresetRestricted:
		cfg.BlockedCommands = []string{"*"}
		cfg.RequireConfirmation = true
		cfg.ReadOnlyMode = true
	default: // PresetStandard and unrecognized presets fall back to standard
		cfg.Preset = PresetStandard
		cfg.BlockedCommands = append([]string{}, standardBlocked...)
		cfg.RequireConfirmation = true
	}
	return cfg
}

// Result is the outcome of validating one command.
type Result struct {
	Allowed             bool
	Reason              string
	Code                string
	RequiresConfirmation bool
}

// Policy is the mutable runtime state wrapped around an immutable Config:
// the audit ring and the pending-permission-request queue.
type Policy struct {
	mu  sync.Mutex
	cfg Config

	audit []AuditEntry

	pendingMu sync.Mutex
	pending   map[string]*pendingRequest
}

// AuditEntry is one append-only record in the audit ring (§3).
type AuditEntry struct {
	Timestamp time.Time
	Command   string
	Cwd       string
	Allowed   bool
	Reason    string
	RequestID string
}

type pendingRequest struct {
	Command string
	Cwd     string
	Status  string // "pending", "approved", "denied"
	Reason  string
}

// New creates a Policy from a Config.
func New(cfg Config) *Policy {
	return &Policy{cfg: cfg, pending: make(map[string]*pendingRequest)}
}

// Config returns a copy of the policy's current configuration.
func (p *Policy) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// SetConfig hot-swaps the policy configuration, e.g. when the config file
// changes under the watcher (SPEC_FULL.md §6).
func (p *Policy) SetConfig(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
}

// Validate runs the five-step contract in §4.3 and, if audit is enabled,
// appends an entry.
func (p *Policy) Validate(command, cwd string) Result {
	res := p.validate(command, cwd)
	p.mu.Lock()
	audit := p.cfg.EnableAudit
	p.mu.Unlock()
	if audit {
		p.appendAudit(command, cwd, res, "")
	}
	return res
}

// TestCommand validates without recording an audit entry (§4.3).
func (p *Policy) TestCommand(command, cwd string) Result {
	return p.validate(command, cwd)
}

func (p *Policy) validate(command, cwd string) Result {
	cfg := p.Config()

	if containsWildcardBlock(cfg.BlockedCommands) {
		return Result{Allowed: false, Code: CodeBlockedCommand, Reason: "Command matches blocked pattern"}
	}

	if matchesBlockedPattern(command, cfg.BlockedCommands) {
		return Result{Allowed: false, Code: CodeBlockedCommand, Reason: "Command matches blocked pattern"}
	}

	if cfg.ReadOnlyMode && IsWriteCommand(command) {
		return Result{Allowed: false, Code: CodeReadOnlyMode, Reason: "Write commands are disabled in read-only mode"}
	}

	if len(cfg.SafeDirectories) > 0 {
		for _, p := range ExtractPaths(command) {
			if !isUnderSafeDirectories(p, cwd, cfg.SafeDirectories) {
				return Result{Allowed: false, Code: CodeUnsafePath, Reason: "outside configured safe directories"}
			}
		}
	}

	if cfg.RequireConfirmation && IsDestructiveCommand(command) {
		return Result{Allowed: true, RequiresConfirmation: true}
	}

	return Result{Allowed: true}
}

func containsWildcardBlock(blocked []string) bool {
	for _, b := range blocked {
		if b == "*" {
			return true
		}
	}
	return false
}

// matchesBlockedPattern implements the pattern rules in §4.3: an entry is
// literal unless prefixed with "re:", in which case it's a regex. Literal
// match is exact equality or "entry " as a prefix, so "rm" blocks "rm file"
// but not "rmdir".
func matchesBlockedPattern(command string, blocked []string) bool {
	for _, entry := range blocked {
		if entry == "*" {
			continue // handled separately by containsWildcardBlock
		}
		if strings.HasPrefix(entry, "re:") {
			pattern := strings.TrimPrefix(entry, "re:")
			re, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}
			if re.MatchString(command) {
				return true
			}
			continue
		}
		if command == entry || strings.HasPrefix(command, entry+" ") {
			return true
		}
	}
	return false
}

// pathLikePattern matches absolute paths, relative paths containing a slash,
// and the values of --file=, --path=, -f, -o flags (§4.3 "Path extraction").
var pathLikePattern = regexp.MustCompile(`(?:--(?:file|path)=(\S+))|(?:-[fo]\s+(\S+))|(/\S*)|([./][\w./-]*\/[\w./-]*)`)

// ExtractPaths pulls candidate filesystem paths out of a command string.
func ExtractPaths(command string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range pathLikePattern.FindAllStringSubmatch(command, -1) {
		for _, g := range m[1:] {
			if g != "" && !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	return out
}

func isUnderSafeDirectories(path, cwd string, safeDirs []string) bool {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, abs)
	}
	abs = filepath.Clean(abs)

	for _, dir := range safeDirs {
		cleanDir := filepath.Clean(dir)
		if abs == cleanDir || strings.HasPrefix(abs, cleanDir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

var writeCommandPrefixes = []string{
	"rm", "mkdir", "rmdir", "touch", "mv", "cp -f", "chmod", "chown",
}

var gitWriteVerbs = []string{
	"git add", "git commit", "git push", "git rm", "git reset --hard", "git checkout -- ",
}

// IsWriteCommand reports whether command would mutate the filesystem (§4.3).
func IsWriteCommand(command string) bool {
	if strings.Contains(command, ">") || strings.Contains(command, "|tee") {
		return true
	}
	for _, prefix := range writeCommandPrefixes {
		if command == prefix || strings.HasPrefix(command, prefix+" ") {
			return true
		}
	}
	for _, verb := range gitWriteVerbs {
		if strings.HasPrefix(command, verb) {
			return true
		}
	}
	return false
}

var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-rf\b`),
	regexp.MustCompile(`\bformat\b`),
	regexp.MustCompile(`\bdiskutil\s+eraseDisk\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\}\s*;:`),
	regexp.MustCompile(`\bdd\s+if=\S+\s+of=/dev/\S+`),
}

// IsDestructiveCommand reports whether command matches a known destructive
// shape (§4.3).
func IsDestructiveCommand(command string) bool {
	for _, re := range destructivePatterns {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

func (p *Policy) appendAudit(command, cwd string, res Result, requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry := AuditEntry{
		Timestamp: time.Now(),
		Command:   command,
		Cwd:       cwd,
		Allowed:   res.Allowed,
		Reason:    res.Reason,
		RequestID: requestID,
	}
	cap := p.cfg.AuditCapacity
	if cap <= 0 {
		cap = 1000
	}
	p.audit = append(p.audit, entry)
	if len(p.audit) > cap {
		p.audit = p.audit[len(p.audit)-cap:]
	}
}

// AuditLog returns entries matching the allowed filter; pass nil to return
// all entries.
func (p *Policy) AuditLog(allowed *bool) []AuditEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if allowed == nil {
		out := make([]AuditEntry, len(p.audit))
		copy(out, p.audit)
		return out
	}
	var out []AuditEntry
	for _, e := range p.audit {
		if e.Allowed == *allowed {
			out = append(out, e)
		}
	}
	return out
}

// ClearAuditLog empties the audit ring and returns how many entries were cleared.
func (p *Policy) ClearAuditLog() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.audit)
	p.audit = nil
	return n
}

// RequestPermission enqueues a pending human-approval request and returns its id.
func (p *Policy) RequestPermission(command, cwd string) string {
	id := uuid.NewString()
	p.pendingMu.Lock()
	p.pending[id] = &pendingRequest{Command: command, Cwd: cwd, Status: "pending"}
	p.pendingMu.Unlock()
	return id
}

// ApprovePermission marks a pending request approved.
func (p *Policy) ApprovePermission(id string) bool {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	req, ok := p.pending[id]
	if !ok {
		return false
	}
	req.Status = "approved"
	return true
}

// DenyPermission marks a pending request denied with a reason.
func (p *Policy) DenyPermission(id, reason string) bool {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	req, ok := p.pending[id]
	if !ok {
		return false
	}
	req.Status = "denied"
	req.Reason = reason
	return true
}

// PermissionStatus returns the current status of a pending/resolved request.
func (p *Policy) PermissionStatus(id string) (string, bool) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	req, ok := p.pending[id]
	if !ok {
		return "", false
	}
	return req.Status, true
}
