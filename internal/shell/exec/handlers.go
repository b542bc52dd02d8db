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

package exec

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/dot-do/fsx/internal/catalog"
	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/dot-do/fsx/internal/fsfacade"
)

// handler runs one builtin command stage of a pipeline, receiving the
// previous stage's stdout as stdin and returning this stage's stdout.
type handler func(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error)

var builtins map[string]handler

func init() {
	builtins = map[string]handler{
		"cat":      cmdCat,
		"ls":       cmdLs,
		"mkdir":    cmdMkdir,
		"rm":       cmdRm,
		"rmdir":    cmdRmdir,
		"cp":       cmdCp,
		"mv":       cmdMv,
		"touch":    cmdTouch,
		"pwd":      cmdPwd,
		"cd":       cmdCd,
		"echo":     cmdEcho,
		"head":     cmdHead,
		"tail":     cmdTail,
		"wc":       cmdWc,
		"stat":     cmdStat,
		"chmod":    cmdChmod,
		"chown":    cmdChown,
		"ln":       cmdLn,
		"readlink": cmdReadlink,
		"realpath": cmdRealpath,
		"basename": cmdBasename,
		"dirname":  cmdDirname,
		"test":     cmdTest,
		"[":        cmdTest,
		"true":     cmdTrue,
		"false":    cmdFalse,
	}
}

// positional splits args into flags (leading "-x" tokens) and the
// remaining positional arguments.
func positional(args []string) (flags, rest []string) {
	for i, a := range args {
		if len(a) > 1 && a[0] == '-' {
			flags = append(flags, a)
			continue
		}
		rest = args[i:]
		break
	}
	return
}

func hasFlag(flags []string, name string) bool {
	for _, f := range flags {
		if f == name {
			return true
		}
	}
	return false
}

func cmdCat(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) == 0 {
		return stdin, 0, nil
	}
	var sb strings.Builder
	for _, a := range rest {
		data, err := ex.FS.ReadFile(ctx, ex.resolve(a), fsfacade.EncodingUTF8)
		if err != nil {
			return "", 1, err
		}
		sb.WriteString(data.(string))
	}
	return sb.String(), 0, nil
}

func cmdLs(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	flags, rest := positional(args)
	dir := ex.Cwd
	if len(rest) > 0 {
		dir = ex.resolve(rest[0])
	}
	entries, err := ex.FS.Readdir(dir, fsfacade.ReaddirOptions{})
	if err != nil {
		return "", 1, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	long := hasFlag(flags, "-l")
	var sb strings.Builder
	for _, e := range entries {
		if long {
			n, serr := ex.FS.Stat(joinCwd(dir, e.Name))
			if serr != nil {
				return "", 1, serr
			}
			fmt.Fprintf(&sb, "%s %6d %s\n", modeString(n), n.Size, e.Name)
			continue
		}
		sb.WriteString(e.Name)
		sb.WriteString("\n")
	}
	return sb.String(), 0, nil
}

func joinCwd(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func modeString(n *catalog.Inode) string {
	var b strings.Builder
	switch {
	case n.Kind.IsDir():
		b.WriteByte('d')
	case n.Kind.IsSymlink():
		b.WriteByte('l')
	default:
		b.WriteByte('-')
	}
	bits := [9]byte{'r', 'w', 'x', 'r', 'w', 'x', 'r', 'w', 'x'}
	for i := 0; i < 9; i++ {
		if n.Mode&(1<<(8-i)) == 0 {
			bits[i] = '-'
		}
	}
	b.Write(bits[:])
	return b.String()
}

func cmdMkdir(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	flags, rest := positional(args)
	if len(rest) == 0 {
		return "", 1, fserrors.New("mkdir", "", fserrors.EINVAL)
	}
	recursive := hasFlag(flags, "-p")
	for _, a := range rest {
		if err := ex.FS.Mkdir(ex.resolve(a), fsfacade.MkdirOptions{Recursive: recursive}); err != nil {
			return "", 1, err
		}
	}
	return "", 0, nil
}

func cmdRm(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	flags, rest := positional(args)
	recursive := hasFlag(flags, "-r") || hasFlag(flags, "-R")
	force := hasFlag(flags, "-f")
	for _, a := range rest {
		if err := ex.FS.Rm(ctx, ex.resolve(a), fsfacade.RmOptions{Recursive: recursive, Force: force}); err != nil {
			return "", 1, err
		}
	}
	return "", 0, nil
}

func cmdRmdir(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	for _, a := range rest {
		if err := ex.FS.Rmdir(ctx, ex.resolve(a), false); err != nil {
			return "", 1, err
		}
	}
	return "", 0, nil
}

func cmdCp(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) != 2 {
		return "", 1, fserrors.New("cp", "", fserrors.EINVAL)
	}
	if err := ex.FS.CopyFile(ctx, ex.resolve(rest[0]), ex.resolve(rest[1]), false); err != nil {
		return "", 1, err
	}
	return "", 0, nil
}

func cmdMv(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) != 2 {
		return "", 1, fserrors.New("mv", "", fserrors.EINVAL)
	}
	if err := ex.FS.Rename(ctx, ex.resolve(rest[0]), ex.resolve(rest[1])); err != nil {
		return "", 1, err
	}
	return "", 0, nil
}

func cmdTouch(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	for _, a := range rest {
		if err := ex.FS.Touch(ctx, ex.resolve(a)); err != nil {
			return "", 1, err
		}
	}
	return "", 0, nil
}

func cmdPwd(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	return ex.Cwd + "\n", 0, nil
}

func cmdCd(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	target := "/"
	if len(rest) > 0 {
		target = ex.resolve(rest[0])
	}
	n, err := ex.FS.Stat(target)
	if err != nil {
		return "", 1, err
	}
	if !n.Kind.IsDir() {
		return "", 1, fserrors.New("cd", target, fserrors.ENOTDIR)
	}
	ex.Cwd = n.Path
	ex.Env["PWD"] = n.Path
	return "", 0, nil
}

func cmdEcho(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	return strings.Join(args, " ") + "\n", 0, nil
}

func cmdHead(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	return headTail(ex, args, stdin, true)
}

func cmdTail(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	return headTail(ex, args, stdin, false)
}

func headTail(ex *Executor, args []string, stdin string, head bool) (string, int, error) {
	n := 10
	var files []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-n" && i+1 < len(args) {
			v, err := strconv.Atoi(args[i+1])
			if err != nil {
				return "", 1, fserrors.New("head", args[i+1], fserrors.EINVAL)
			}
			n = v
			i++
			continue
		}
		files = append(files, args[i])
	}
	text := stdin
	if len(files) > 0 {
		data, err := ex.FS.ReadFile(context.Background(), ex.resolve(files[0]), fsfacade.EncodingUTF8)
		if err != nil {
			return "", 1, err
		}
		text = data.(string)
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if text == "" {
		lines = nil
	}
	if head {
		if n < len(lines) {
			lines = lines[:n]
		}
	} else if n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	if len(lines) == 0 {
		return "", 0, nil
	}
	return strings.Join(lines, "\n") + "\n", 0, nil
}

func cmdWc(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	flags, rest := positional(args)
	text := stdin
	if len(rest) > 0 {
		data, err := ex.FS.ReadFile(ctx, ex.resolve(rest[0]), fsfacade.EncodingUTF8)
		if err != nil {
			return "", 1, err
		}
		text = data.(string)
	}
	lines := strings.Count(text, "\n")
	words := len(strings.Fields(text))
	bytes := len(text)
	switch {
	case hasFlag(flags, "-l"):
		return fmt.Sprintf("%d\n", lines), 0, nil
	case hasFlag(flags, "-w"):
		return fmt.Sprintf("%d\n", words), 0, nil
	case hasFlag(flags, "-c"):
		return fmt.Sprintf("%d\n", bytes), 0, nil
	default:
		return fmt.Sprintf("%7d %7d %7d\n", lines, words, bytes), 0, nil
	}
}

func cmdStat(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) == 0 {
		return "", 1, fserrors.New("stat", "", fserrors.EINVAL)
	}
	n, err := ex.FS.Lstat(ex.resolve(rest[0]))
	if err != nil {
		return "", 1, err
	}
	return fmt.Sprintf("  File: %s\n  Size: %d\tKind: %s\nAccess: %04o\tUid: %d\tGid: %d\tLinks: %d\nModify: %s\n",
		n.Path, n.Size, n.Kind, n.Mode&0o7777, n.UID, n.GID, n.Nlink, n.Mtime.Format("2006-01-02 15:04:05")), 0, nil
}

func cmdChmod(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) != 2 {
		return "", 1, fserrors.New("chmod", "", fserrors.EINVAL)
	}
	mode, err := strconv.ParseUint(rest[0], 8, 32)
	if err != nil {
		return "", 1, fserrors.New("chmod", rest[0], fserrors.EINVAL)
	}
	if err := ex.FS.Chmod(ex.resolve(rest[1]), uint32(mode)); err != nil {
		return "", 1, err
	}
	return "", 0, nil
}

func cmdChown(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) != 2 {
		return "", 1, fserrors.New("chown", "", fserrors.EINVAL)
	}
	parts := strings.SplitN(rest[0], ":", 2)
	uid, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", 1, fserrors.New("chown", rest[0], fserrors.EINVAL)
	}
	gid := -1
	if len(parts) == 2 {
		gid, err = strconv.Atoi(parts[1])
		if err != nil {
			return "", 1, fserrors.New("chown", rest[0], fserrors.EINVAL)
		}
	}
	if err := ex.FS.Chown(ex.resolve(rest[1]), uid, gid); err != nil {
		return "", 1, err
	}
	return "", 0, nil
}

func cmdLn(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	flags, rest := positional(args)
	if len(rest) != 2 {
		return "", 1, fserrors.New("ln", "", fserrors.EINVAL)
	}
	if hasFlag(flags, "-s") {
		if err := ex.FS.Symlink(rest[0], ex.resolve(rest[1])); err != nil {
			return "", 1, err
		}
		return "", 0, nil
	}
	if err := ex.FS.Link(ex.resolve(rest[0]), ex.resolve(rest[1])); err != nil {
		return "", 1, err
	}
	return "", 0, nil
}

func cmdReadlink(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) == 0 {
		return "", 1, fserrors.New("readlink", "", fserrors.EINVAL)
	}
	target, err := ex.FS.Readlink(ex.resolve(rest[0]))
	if err != nil {
		return "", 1, err
	}
	return target + "\n", 0, nil
}

func cmdRealpath(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) == 0 {
		return "", 1, fserrors.New("realpath", "", fserrors.EINVAL)
	}
	resolved, err := ex.FS.Realpath(ex.resolve(rest[0]))
	if err != nil {
		return "", 1, err
	}
	return resolved + "\n", 0, nil
}

func cmdBasename(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) == 0 {
		return "", 1, fserrors.New("basename", "", fserrors.EINVAL)
	}
	return path.Base(rest[0]) + "\n", 0, nil
}

func cmdDirname(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	_, rest := positional(args)
	if len(rest) == 0 {
		return "", 1, fserrors.New("dirname", "", fserrors.EINVAL)
	}
	return path.Dir(rest[0]) + "\n", 0, nil
}

// cmdTest implements the common "test"/"[" predicates: -e, -f, -d.
func cmdTest(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	if len(args) > 0 && args[len(args)-1] == "]" {
		args = args[:len(args)-1]
	}
	if len(args) != 2 {
		return "", 2, fserrors.New("test", "", fserrors.EINVAL)
	}
	op, operand := args[0], args[1]
	exists := ex.FS.Exists(ex.resolve(operand))
	var ok bool
	switch op {
	case "-e":
		ok = exists
	case "-f":
		ok = exists && statKind(ex, operand, func(k catalog.Kind) bool { return k.IsRegular() })
	case "-d":
		ok = exists && statKind(ex, operand, func(k catalog.Kind) bool { return k.IsDir() })
	default:
		return "", 2, fserrors.New("test", op, fserrors.EINVAL)
	}
	// test(1) reports its predicate purely via exit code: 0 for true, 1
	// for false, with no stdout.
	if ok {
		return "", 0, nil
	}
	return "", 1, nil
}

func statKind(ex *Executor, operand string, pred func(catalog.Kind) bool) bool {
	n, err := ex.FS.Stat(ex.resolve(operand))
	if err != nil {
		return false
	}
	return pred(n.Kind)
}

func cmdTrue(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	return "", 0, nil
}

func cmdFalse(ctx context.Context, ex *Executor, args []string, stdin string) (string, int, error) {
	return "", 1, nil
}
