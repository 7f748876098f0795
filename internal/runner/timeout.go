// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"strings"
	"time"
)

// Timeout tiers (§4.4).
const (
	timeoutDefault = 1 * time.Minute
	timeoutBasic   = 2 * time.Minute
	timeoutMedium  = 3 * time.Minute
	timeoutComplex = 5 * time.Minute
	timeoutExpert  = 10 * time.Minute
)

var complexKeywords = []string{"review", "analyze", "audit", "debug", "test", "document"}

var expertKeywords = []string{"expert", "comprehensive", "thorough", "complete", "full"}

// DeriveTimeout computes the execution timeout for a prompt per §4.4: plain
// short prompts get the basic tier; length and keyword cues escalate it;
// expert-level keywords always win regardless of length or other keywords.
func DeriveTimeout(prompt string) time.Duration {
	if prompt == "" {
		return timeoutDefault
	}

	lower := strings.ToLower(prompt)
	for _, kw := range expertKeywords {
		if strings.Contains(lower, kw) {
			return timeoutExpert
		}
	}

	timeout := timeoutBasic

	switch {
	case len(prompt) >= 250:
		timeout = timeoutComplex
	case len(prompt) >= 100:
		timeout = timeoutMedium
	}

	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			if timeoutComplex > timeout {
				timeout = timeoutComplex
			}
			break
		}
	}

	return timeout
}
