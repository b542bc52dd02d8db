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

package parser

import (
	"github.com/dot-do/fsx/internal/fserrors"
)

// Command is one pipeline stage: a command name and its arguments,
// after short-flag expansion.
type Command struct {
	Name string
	Args []string
}

// Pipeline is one parsed command line: a left-to-right chain of commands
// connected by "|", with optional input/output redirection bound to the
// pipeline as a whole (stdin feeds the first stage, stdout/append drains
// the last).
type Pipeline struct {
	Commands []Command
	Stdin    string // "" if none
	Stdout   string // "" if none
	Append   bool
}

// Statements is a semicolon-separated sequence of independent pipelines.
type Statements struct {
	Pipelines []Pipeline
}

// Parse tokenizes and parses a full command line into one or more
// semicolon-separated pipelines. Each command's arguments are passed
// through ExpandShortFlags using flagTable, a per-command-name table of
// which short flags take a following value (so "-n5"/"-n 5" and bundled
// boolean flags like "-la" both expand correctly).
func Parse(line string, flagTable map[string]map[byte]bool) (*Statements, error) {
	toks, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(toks) > 0 && toks[len(toks)-1].Kind == TokPipe {
		return nil, fserrors.New("parse", line, fserrors.EINVAL)
	}
	var stmts Statements
	var cur Pipeline
	var cmd *Command
	startCommand := func(name string) {
		cur.Commands = append(cur.Commands, Command{Name: name})
		cmd = &cur.Commands[len(cur.Commands)-1]
	}
	finishPipeline := func() {
		if len(cur.Commands) > 0 {
			stmts.Pipelines = append(stmts.Pipelines, cur)
		}
		cur = Pipeline{}
		cmd = nil
	}

	i := 0
	for i < len(toks) {
		t := toks[i]
		switch t.Kind {
		case TokWord:
			if cmd == nil {
				startCommand(t.Text)
			} else {
				cmd.Args = append(cmd.Args, t.Text)
			}
			i++
		case TokPipe:
			if cmd == nil {
				return nil, fserrors.New("parse", line, fserrors.EINVAL)
			}
			cmd = nil
			i++
		case TokRedirectOut, TokRedirectAppend:
			if i+1 >= len(toks) || toks[i+1].Kind != TokWord {
				return nil, fserrors.New("parse", line, fserrors.EINVAL)
			}
			cur.Stdout = toks[i+1].Text
			cur.Append = t.Kind == TokRedirectAppend
			i += 2
		case TokRedirectIn:
			if i+1 >= len(toks) || toks[i+1].Kind != TokWord {
				return nil, fserrors.New("parse", line, fserrors.EINVAL)
			}
			cur.Stdin = toks[i+1].Text
			i += 2
		case TokSemicolon:
			finishPipeline()
			i++
		}
	}
	finishPipeline()

	for pi := range stmts.Pipelines {
		for ci := range stmts.Pipelines[pi].Commands {
			c := &stmts.Pipelines[pi].Commands[ci]
			c.Args = ExpandShortFlags(c.Name, c.Args, flagTable[c.Name])
		}
	}
	return &stmts, nil
}
