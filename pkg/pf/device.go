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

//go:build unix

package pf

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ControlDevice is an open handle on the pf control device.
type ControlDevice struct {
	f *os.File
}

var _ Device = &ControlDevice{}

// Open opens the control device at path for reading and writing.
func Open(path string) (*ControlDevice, error) {
	if path == "" {
		path = DefaultDevicePath
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &ControlDevice{f: f}, nil
}

// NewControlDevice wraps a control device opened by the caller. Closing the
// ControlDevice closes f.
func NewControlDevice(f *os.File) *ControlDevice {
	return &ControlDevice{f: f}
}

// Ioctl issues req on the device. A failing call returns its unix.Errno.
func (d *ControlDevice) Ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Close closes the underlying handle.
func (d *ControlDevice) Close() error {
	return d.f.Close()
}
