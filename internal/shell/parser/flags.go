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

import "strings"

// ValueFlagTable maps each built-in command to the short flags that
// consume the following argument as a value (e.g. "head -n 5"), rather
// than being a standalone boolean that can be bundled ("ls -la").
var ValueFlagTable = map[string]map[byte]bool{
	"head": {'n': true, 'c': true},
	"tail": {'n': true, 'c': true},
	"chmod": {},
	"chown": {},
}

// ExpandShortFlags rewrites bundled short flags ("-la") into individual
// tokens ("-l", "-a"), and splits an attached value off a value-taking
// flag ("-n5" -> "-n", "5"). Long flags ("--foo"), bare words, and
// already-separated flags pass through unchanged.
func ExpandShortFlags(cmdName string, args []string, valueFlags map[byte]bool) []string {
	var out []string
	for _, a := range args {
		expanded, ok := expandOne(a, valueFlags)
		if !ok {
			out = append(out, a)
			continue
		}
		out = append(out, expanded...)
	}
	return out
}

// expandOne expands a single bundled short-flag argument, returning
// ok=false (pass through unchanged) for long flags, bare words, or any
// bundle containing a non-alphanumeric flag character.
func expandOne(a string, valueFlags map[byte]bool) ([]string, bool) {
	if len(a) < 2 || a[0] != '-' || a[1] == '-' {
		return nil, false
	}
	body := a[1:]
	var out []string
	for i := 0; i < len(body); i++ {
		f := body[i]
		if !isShortFlagChar(f) {
			return nil, false
		}
		out = append(out, "-"+string(f))
		if valueFlags[f] {
			if i+1 < len(body) {
				out = append(out, body[i+1:])
			}
			return out, true
		}
	}
	return out, true
}

func isShortFlagChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// JoinArgs renders args back into a displayable command line, quoting
// any argument containing whitespace. Used by safety/history logging.
func JoinArgs(name string, args []string) string {
	parts := []string{name}
	for _, a := range args {
		if strings.ContainsAny(a, " \t'\"") {
			parts = append(parts, "'"+strings.ReplaceAll(a, "'", `'\''`)+"'")
		} else {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}
