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
	"runtime"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/containernetworking/addrtable/pkg/addrtable"
)

// DefaultDevicePath is the pf control device.
const DefaultDevicePath = "/dev/pf"

// Device issues ioctl requests against the control device. arg points at a
// PfiocTable.
type Device interface {
	Ioctl(req uintptr, arg unsafe.Pointer) error
}

// Command is a table operation understood by the control device.
type Command int

const (
	ClrAddrs Command = iota
	AddAddrs
	DelAddrs
	SetAddrs
	GetAddrs
	TstAddrs
)

var commandNames = map[Command]string{
	ClrAddrs: "DIOCRCLRADDRS",
	AddAddrs: "DIOCRADDADDRS",
	DelAddrs: "DIOCRDELADDRS",
	SetAddrs: "DIOCRSETADDRS",
	GetAddrs: "DIOCRGETADDRS",
	TstAddrs: "DIOCRTSTADDRS",
}

var commandRequests = map[Command]uintptr{
	ClrAddrs: DIOCRCLRADDRS,
	AddAddrs: DIOCRADDADDRS,
	DelAddrs: DIOCRDELADDRS,
	SetAddrs: DIOCRSETADDRS,
	GetAddrs: DIOCRGETADDRS,
	TstAddrs: DIOCRTSTADDRS,
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Request returns the ioctl request number for c.
func (c Command) Request() (uintptr, error) {
	req, ok := commandRequests[c]
	if !ok {
		return 0, errors.Wrapf(ErrUnimplemented, "%s", c)
	}
	return req, nil
}

// usesBuffer reports whether the kernel expects pfrio_esize to be set.
// DIOCRCLRADDRS rejects a non-zero element size.
func (c Command) usesBuffer() bool {
	return c != ClrAddrs
}

// TableRequest drives one table ioctl. Entries is both the input and the
// output buffer: it is encoded before the call and rebuilt from the kernel's
// copy afterwards. The counters hold what the most recent call reported.
type TableRequest struct {
	Table   TableRef
	Entries []addrtable.Entry

	Size    int
	Added   int
	Deleted int
	Changed int
}

// NewTableRequest returns a request for the named table with an empty buffer.
func NewTableRequest(anchor, name string) *TableRequest {
	return &TableRequest{Table: TableRef{Anchor: anchor, Name: name}}
}

// Fire encodes the request, issues cmd against dev and decodes the kernel's
// answer into r. Nothing in r changes unless the call and the decoding both
// succeed. Failed calls are not retried.
func (r *TableRequest) Fire(dev Device, cmd Command) error {
	req, err := cmd.Request()
	if err != nil {
		return err
	}

	table, err := EncodeTable(r.Table)
	if err != nil {
		return err
	}

	// buf is the only storage the kernel sees. It is allocated here, is never
	// resized, and outlives the ioctl below.
	buf := make([]PfrAddr, len(r.Entries))
	for i, e := range r.Entries {
		if buf[i], err = EncodeEntry(e); err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
	}

	io := NewPfiocTable()
	io.Table = table
	if len(buf) > 0 {
		io.Buffer = &buf[0]
	}
	if cmd.usesBuffer() {
		io.Esize = int32(SizeofPfrAddr)
	}
	io.Size = int32(len(buf))

	err = dev.Ioctl(req, unsafe.Pointer(&io))
	runtime.KeepAlive(buf)
	if err != nil {
		return &CallError{Command: cmd, Table: r.Table.String(), Err: err}
	}

	return r.update(&io, buf)
}

// update decodes io and the buffer that was passed to the kernel with it.
// Entries are read head to tail so the kernel's order is preserved. When
// the kernel reports more entries than buf holds it has only reported the
// count, and the entry buffer is emptied.
func (r *TableRequest) update(io *PfiocTable, buf []PfrAddr) error {
	table, err := DecodeTable(io.Table)
	if err != nil {
		return err
	}

	size := int(io.Size)
	if size < 0 {
		return errors.Wrapf(ErrTranslation, "negative size %d", size)
	}

	var entries []addrtable.Entry
	if size <= len(buf) {
		entries = make([]addrtable.Entry, 0, size)
		for i := 0; i < size; i++ {
			e, err := DecodeEntry(buf[i])
			if err != nil {
				return errors.Wrapf(err, "entry %d", i)
			}
			entries = append(entries, e)
		}
	}

	r.Table = table
	r.Entries = entries
	r.Size = size
	r.Added = int(io.Nadd)
	r.Deleted = int(io.Ndel)
	r.Changed = int(io.Nchange)
	return nil
}
