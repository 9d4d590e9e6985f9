// Copyright 2026 CNI authors
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

package pf

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/containernetworking/addrtable/pkg/addrtable"
)

var (
	// ErrTranslation is matched by every failure to convert between the
	// kernel structures and their Go counterparts.
	ErrTranslation = errors.New("pf: translation failed")

	// ErrUnknownAddressFamily is returned when decoding an entry whose
	// address family is neither AF_INET nor AF_INET6. It also matches
	// ErrTranslation.
	ErrUnknownAddressFamily = errors.Wrap(ErrTranslation, "unknown address family")

	// ErrUnimplemented is returned for commands without an ioctl request.
	ErrUnimplemented = errors.New("pf: command not implemented")
)

// CallError is returned when the ioctl itself fails. Err is the error the
// device reported, normally a unix.Errno, unmodified.
type CallError struct {
	Command Command
	Table   string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("pf: %s on table %q: %v", e.Command, e.Table, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Is lets a missing table (ESRCH) match addrtable.ErrNotFound.
func (e *CallError) Is(target error) bool {
	return target == addrtable.ErrNotFound && errors.Is(e.Err, unix.ESRCH)
}
