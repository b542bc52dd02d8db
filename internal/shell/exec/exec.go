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

// Package exec implements the bash-like command handlers and pipeline
// runtime of spec §4.J, running entirely against an *fsfacade.FS (or a
// *sparsefs.FS wearing the same interface) rather than the host OS.
package exec

import (
	"context"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dot-do/fsx/internal/catalog"
	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/dot-do/fsx/internal/fsfacade"
	"github.com/dot-do/fsx/internal/logger"
	"github.com/dot-do/fsx/internal/shell/parser"
	"github.com/dot-do/fsx/internal/shell/safety"
)

// FS is the subset of *fsfacade.FS the executor needs, expressed with
// the facade's own types. *sparsefs.FS implements the same method set,
// so the executor runs unmodified over a sparse-checkout-filtered view.
type FS interface {
	ReadFile(ctx context.Context, path string, enc fsfacade.Encoding) (any, error)
	WriteFile(ctx context.Context, path string, data []byte, mode uint32, flag fsfacade.Flag) error
	AppendFile(ctx context.Context, path string, data []byte) error
	Unlink(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	CopyFile(ctx context.Context, src, dest string, exclusive bool) error
	Mkdir(path string, opts fsfacade.MkdirOptions) error
	Rmdir(ctx context.Context, path string, recursive bool) error
	Rm(ctx context.Context, path string, opts fsfacade.RmOptions) error
	Readdir(path string, opts fsfacade.ReaddirOptions) ([]fsfacade.DirEntry, error)
	Stat(path string) (*catalog.Inode, error)
	Lstat(path string) (*catalog.Inode, error)
	Chmod(path string, mode uint32) error
	Chown(path string, uid, gid int) error
	Symlink(target, path string) error
	Link(existing, newPath string) error
	Readlink(path string) (string, error)
	Realpath(path string) (string, error)
	Exists(path string) bool
	Touch(ctx context.Context, path string) error
}

// Executor holds the shell's mutable session state: working directory,
// environment, safety policy/overrides, and execution history.
type Executor struct {
	FS        FS
	Cwd       string
	Env       map[string]string
	Policy    safety.Policy
	Safety    *safety.Store
	FlagTable map[string]map[byte]bool
	Stdout    *strings.Builder // overall transcript, for an interactive caller
}

// New builds an Executor rooted at "/", with the default safety policy.
func New(fs FS, safetyStore *safety.Store) *Executor {
	return &Executor{
		FS:        fs,
		Cwd:       "/",
		Env:       map[string]string{"PWD": "/", "HOME": "/"},
		Policy:    safety.DefaultPolicy(),
		Safety:    safetyStore,
		FlagTable: parser.ValueFlagTable,
	}
}

// Run parses and executes an entire command line, possibly several
// semicolon-separated pipelines, returning the last pipeline's combined
// stdout and exit code.
func (ex *Executor) Run(ctx context.Context, line string) (string, int, error) {
	stmts, err := parser.Parse(line, ex.FlagTable)
	if err != nil {
		return "", 1, err
	}
	var out string
	var code int
	for _, p := range stmts.Pipelines {
		out, code, err = ex.runPipeline(ctx, p)
		if err != nil {
			return out, code, err
		}
	}
	return out, code, nil
}

func (ex *Executor) runPipeline(ctx context.Context, p parser.Pipeline) (string, int, error) {
	rendered := renderPipeline(p)
	overrides, _ := safetyOverrides(ex.Safety)
	analysis := safety.Analyze(rendered, ex.Policy, overrides)
	if analysis.Verdict == safety.VerdictBlock {
		ex.logHistory(rendered, analysis, 126)
		return "", 126, fserrors.New("exec", rendered, fserrors.EACCES)
	}
	if analysis.Verdict == safety.VerdictWarn {
		logger.Warnf("exec: risky command allowed with warning: %s", rendered)
	}

	var stdin string
	if p.Stdin != "" {
		data, err := ex.FS.ReadFile(ctx, ex.resolve(p.Stdin), fsfacade.EncodingUTF8)
		if err != nil {
			return "", 1, err
		}
		stdin = data.(string)
	}

	var out string
	code := 0
	for _, c := range p.Commands {
		args := ex.expandEnv(c.Args)
		handler, ok := builtins[c.Name]
		if !ok {
			ex.logHistory(rendered, analysis, 127)
			return "", 127, fserrors.New("exec", c.Name, fserrors.EINVAL)
		}
		var err error
		out, code, err = handler(ctx, ex, args, stdin)
		if err != nil {
			ex.logHistory(rendered, analysis, 1)
			return out, 1, err
		}
		stdin = out
	}

	if p.Stdout != "" {
		flag := fsfacade.FlagTruncate
		if p.Append {
			flag = fsfacade.FlagAppend
		}
		if err := ex.FS.WriteFile(ctx, ex.resolve(p.Stdout), []byte(out), 0, flag); err != nil {
			return out, 1, err
		}
		out = ""
	}

	ex.logHistory(rendered, analysis, code)
	return out, code, nil
}

func renderPipeline(p parser.Pipeline) string {
	parts := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		parts[i] = parser.JoinArgs(c.Name, c.Args)
	}
	line := strings.Join(parts, " | ")
	if p.Stdin != "" {
		line += " < " + p.Stdin
	}
	if p.Stdout != "" {
		if p.Append {
			line += " >> " + p.Stdout
		} else {
			line += " > " + p.Stdout
		}
	}
	return line
}

func safetyOverrides(s *safety.Store) ([]safety.Override, error) {
	if s == nil {
		return nil, nil
	}
	return s.ListOverrides()
}

func (ex *Executor) logHistory(line string, a safety.Analysis, code int) {
	if ex.Safety == nil {
		return
	}
	_ = ex.Safety.AppendHistory(safety.HistoryEntry{
		CommandLine: line,
		Risk:        a.Risk,
		Verdict:     a.Verdict,
		ExitCode:    code,
		Time:        time.Now(),
	}, 1000)
}

// resolve joins a possibly-relative path against the executor's cwd.
func (ex *Executor) resolve(p string) string {
	if p == "" || p[0] == '/' {
		return p
	}
	if ex.Cwd == "/" {
		return "/" + p
	}
	return ex.Cwd + "/" + p
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func (ex *Executor) expandEnv(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = envRef.ReplaceAllStringFunc(a, func(m string) string {
			sub := envRef.FindStringSubmatch(m)
			name := sub[1]
			if name == "" {
				name = sub[2]
			}
			if name == "PWD" {
				return ex.Cwd
			}
			if v, ok := ex.Env[name]; ok {
				return v
			}
			return os.Getenv(name)
		})
	}
	return out
}
