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

// Package fserrors defines the POSIX-like error taxonomy the catalog and FS
// facade raise, per the core's error handling design: callers get typed
// errors carrying the failing path, and can test them with errors.Is against
// the sentinel of their code.
package fserrors

import "fmt"

// Code is one of the error kinds the core emits externally.
type Code string

const (
	ENOENT       Code = "ENOENT"
	EEXIST       Code = "EEXIST"
	EISDIR       Code = "EISDIR"
	ENOTDIR      Code = "ENOTDIR"
	ENOTEMPTY    Code = "ENOTEMPTY"
	EINVAL       Code = "EINVAL"
	EACCES       Code = "EACCES"
	EFBIG        Code = "EFBIG"
	ENAMETOOLONG Code = "ENAMETOOLONG"
)

// PathError is returned by every catalog and FS facade operation that fails.
// It implements error and Unwrap so callers can use errors.Is against the
// package sentinels below.
type PathError struct {
	Op   string
	Path string
	Code Code
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Code)
}

func (e *PathError) Unwrap() error {
	return e.sentinel()
}

func (e *PathError) sentinel() error {
	switch e.Code {
	case ENOENT:
		return ErrNotExist
	case EEXIST:
		return ErrExist
	case EISDIR:
		return ErrIsDir
	case ENOTDIR:
		return ErrNotDir
	case ENOTEMPTY:
		return ErrNotEmpty
	case EINVAL:
		return ErrInvalid
	case EACCES:
		return ErrPermission
	case EFBIG:
		return ErrFileTooBig
	case ENAMETOOLONG:
		return ErrNameTooLong
	default:
		return ErrUnknown
	}
}

// Sentinels, one per Code, usable with errors.Is(err, fserrors.ErrNotExist).
var (
	ErrNotExist    = sentinel{ENOENT}
	ErrExist       = sentinel{EEXIST}
	ErrIsDir       = sentinel{EISDIR}
	ErrNotDir      = sentinel{ENOTDIR}
	ErrNotEmpty    = sentinel{ENOTEMPTY}
	ErrInvalid     = sentinel{EINVAL}
	ErrPermission  = sentinel{EACCES}
	ErrFileTooBig  = sentinel{EFBIG}
	ErrNameTooLong = sentinel{ENAMETOOLONG}
	ErrUnknown     = sentinel{"EUNKNOWN"}
)

type sentinel struct{ code Code }

func (s sentinel) Error() string { return string(s.code) }

// New builds a *PathError for the given operation, path and code.
func New(op, path string, code Code) *PathError {
	return &PathError{Op: op, Path: path, Code: code}
}

// Wrap builds a *PathError that also carries an underlying cause (e.g. an
// object-store I/O failure) without corrupting the code taxonomy exposed to
// callers.
func Wrap(op, path string, code Code, err error) *PathError {
	return &PathError{Op: op, Path: path, Code: code, Err: err}
}

// Is reports whether err carries the given code, looking through PathError.
func Is(err error, code Code) bool {
	pe, ok := err.(*PathError)
	if !ok {
		return false
	}
	return pe.Code == code
}
