// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package safety implements the risk-scoring safety analyzer of spec
// §4.I: a regex-driven dangerous-pattern scan, a persisted allow/block
// override list, and an execution-history log, all kept in the shared
// catalog bbolt file (per §6, one table each).
package safety

import (
	"regexp"
	"strings"
	"time"
)

// Risk classifies the outcome of analyzing one pipeline.
type Risk int

const (
	RiskNone Risk = iota
	RiskLow
	RiskMedium
	RiskHigh
)

func (r Risk) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "none"
	}
}

// Verdict resolution mirrors the override resolution order: an explicit
// override always wins over the regex/risk-score heuristic.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictWarn
	VerdictBlock
)

// Finding is one matched dangerous pattern.
type Finding struct {
	Pattern     string
	Description string
	Risk        Risk
}

// Analysis is the result of analyzing one rendered command line.
type Analysis struct {
	CommandLine string
	Findings    []Finding
	Risk        Risk
	Verdict     Verdict
	Overridden  bool
}

// dangerousPattern matches when every regex in all is found in the
// rendered command line. A single-element all behaves like a plain
// regex match; multiple elements let a rule require several independent
// tokens (e.g. both a recursive flag and a force flag) regardless of how
// the shell parser ordered or split them after short-flag expansion.
type dangerousPattern struct {
	all  []*regexp.Regexp
	risk Risk
	desc string
}

func (p dangerousPattern) matches(line string) bool {
	for _, re := range p.all {
		if !re.MatchString(line) {
			return false
		}
	}
	return true
}

func (p dangerousPattern) String() string {
	parts := make([]string, len(p.all))
	for i, re := range p.all {
		parts[i] = re.String()
	}
	return strings.Join(parts, " && ")
}

var (
	reRm        = regexp.MustCompile(`\brm\b`)
	reRecursive = regexp.MustCompile(`(^|\s)(-[a-zA-Z]*[rR][a-zA-Z]*|--recursive)(\s|$)`)
	reForce     = regexp.MustCompile(`(^|\s)(-[a-zA-Z]*f[a-zA-Z]*|--force)(\s|$)`)
)

// builtinPatterns covers the destructive/irreversible operations a
// virtual shell can still express against the catalog: recursive force
// removal (of any path), removal of the root, permission changes to
// world-writable, and truncating redirection under /etc. Flags are matched
// independently of order or bundling, since the parser expands "-rf"
// into separate "-r"/"-f" tokens before a pipeline reaches the analyzer.
var builtinPatterns = []dangerousPattern{
	{all: []*regexp.Regexp{reRm, reRecursive, reForce}, risk: RiskHigh, desc: "recursive forced removal"},
	{all: []*regexp.Regexp{regexp.MustCompile(`\brm\s+(-[a-zA-Z]+\s+)*/\s*$`)}, risk: RiskHigh, desc: "removal of the filesystem root"},
	{all: []*regexp.Regexp{regexp.MustCompile(`\bchmod\s+.*\b0*777\b`)}, risk: RiskMedium, desc: "world-writable permission grant"},
	{all: []*regexp.Regexp{regexp.MustCompile(`>\s*/etc/`)}, risk: RiskMedium, desc: "overwrite under /etc"},
}

// Policy is a named bundle of pattern rules plus the default verdict
// applied when no override matches. Policies live in memory only; the
// Store persists overrides and history, not policies.
type Policy struct {
	Name           string
	Patterns       []dangerousPattern
	DefaultVerdict Verdict
}

// DefaultPolicy uses the built-in pattern set; RiskHigh blocks, RiskMedium
// warns, everything else is allowed.
func DefaultPolicy() Policy {
	return Policy{Name: "default", Patterns: builtinPatterns, DefaultVerdict: VerdictAllow}
}

// Override pins an explicit allow/block decision to command lines
// matching Pattern (a regular expression evaluated against the fully
// rendered command line, after flag expansion).
type Override struct {
	Pattern string
	Verdict Verdict
	Reason  string
	re      *regexp.Regexp
}

// HistoryEntry records one executed pipeline for audit purposes.
type HistoryEntry struct {
	CommandLine string
	Risk        Risk
	Verdict     Verdict
	ExitCode    int
	Time        time.Time
}

// Analyze scores commandLine against policy, then resolves overrides.
// An override match always wins over the policy's own verdict.
func Analyze(commandLine string, policy Policy, overrides []Override) Analysis {
	a := Analysis{CommandLine: commandLine}
	worst := RiskNone
	for _, p := range policy.Patterns {
		if p.matches(commandLine) {
			a.Findings = append(a.Findings, Finding{Pattern: p.String(), Description: p.desc, Risk: p.risk})
			if p.risk > worst {
				worst = p.risk
			}
		}
	}
	a.Risk = worst
	a.Verdict = verdictForRisk(worst, policy.DefaultVerdict)

	for _, o := range overrides {
		re := o.re
		if re == nil {
			re = regexp.MustCompile(o.Pattern)
		}
		if re.MatchString(commandLine) {
			a.Verdict = o.Verdict
			a.Overridden = true
		}
	}
	return a
}

func verdictForRisk(r Risk, def Verdict) Verdict {
	switch r {
	case RiskHigh:
		return VerdictBlock
	case RiskMedium:
		return VerdictWarn
	default:
		return def
	}
}
