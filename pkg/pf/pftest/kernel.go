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

// Package pftest provides an in-memory stand-in for the pf control device.
// It serves the table ioctls the way the OpenBSD kernel does, reading and
// writing entries through the buffer address carried by the request.
package pftest

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/containernetworking/addrtable/pkg/addrtable"
	"github.com/containernetworking/addrtable/pkg/pf"
)

// Call records one request served by a Kernel.
type Call struct {
	Request uintptr
	Table   pf.TableRef
	Esize   int32
	Size    int32
}

// Kernel holds pf tables in memory and implements pf.Device.
type Kernel struct {
	tables map[pf.TableRef][]pf.PfrAddr

	// BeforeIoctl, when set, runs before each request is served.
	BeforeIoctl func(req uintptr)

	// Calls lists every request in the order it was served.
	Calls []Call
}

var _ pf.Device = &Kernel{}

// NewKernel returns a Kernel without any tables.
func NewKernel() *Kernel {
	return &Kernel{tables: map[pf.TableRef][]pf.PfrAddr{}}
}

// Define creates a table holding entries, replacing any existing one.
func (k *Kernel) Define(anchor, name string, entries ...addrtable.Entry) error {
	ref := pf.TableRef{Anchor: anchor, Name: name}
	addrs := make([]pf.PfrAddr, 0, len(entries))
	for _, e := range entries {
		a, err := pf.EncodeEntry(e)
		if err != nil {
			return err
		}
		if !validAddr(&a) {
			return fmt.Errorf("invalid table entry %s", e)
		}
		addrs = append(addrs, a)
	}
	k.tables[ref] = addrs
	return nil
}

// Entries returns the contents of a table, or nil if it does not exist.
func (k *Kernel) Entries(anchor, name string) []addrtable.Entry {
	addrs, ok := k.tables[pf.TableRef{Anchor: anchor, Name: name}]
	if !ok {
		return nil
	}
	entries := make([]addrtable.Entry, 0, len(addrs))
	for _, a := range addrs {
		e, err := pf.DecodeEntry(a)
		if err != nil {
			panic(err)
		}
		entries = append(entries, e)
	}
	return entries
}

// Ioctl serves one table request.
func (k *Kernel) Ioctl(req uintptr, arg unsafe.Pointer) error {
	if k.BeforeIoctl != nil {
		k.BeforeIoctl(req)
	}

	io := (*pf.PfiocTable)(arg)
	ref, err := pf.DecodeTable(io.Table)
	if err != nil || ref.Name == "" {
		return unix.EINVAL
	}
	k.Calls = append(k.Calls, Call{Request: req, Table: ref, Esize: io.Esize, Size: io.Size})

	table, ok := k.tables[ref]
	if !ok {
		return unix.ESRCH
	}

	if req == pf.DIOCRCLRADDRS {
		if io.Esize != 0 {
			return unix.ENODEV
		}
		io.Ndel = int32(len(table))
		k.tables[ref] = nil
		return nil
	}

	if io.Esize != int32(pf.SizeofPfrAddr) {
		return unix.ENODEV
	}
	if io.Size < 0 || (io.Size > 0 && io.Buffer == nil) {
		return unix.EFAULT
	}
	var buf []pf.PfrAddr
	if io.Size > 0 {
		buf = unsafe.Slice(io.Buffer, io.Size)
	}

	switch req {
	case pf.DIOCRADDADDRS:
		if !validAll(buf) {
			return unix.EINVAL
		}
		var nadd int32
		for _, a := range buf {
			if index(table, &a) < 0 {
				table = append(table, a)
				nadd++
			}
		}
		k.tables[ref] = table
		io.Nadd = nadd

	case pf.DIOCRDELADDRS:
		if !validAll(buf) {
			return unix.EINVAL
		}
		var ndel int32
		for _, a := range buf {
			if i := index(table, &a); i >= 0 {
				table = append(table[:i:i], table[i+1:]...)
				ndel++
			}
		}
		k.tables[ref] = table
		io.Ndel = ndel

	case pf.DIOCRSETADDRS:
		if !validAll(buf) {
			return unix.EINVAL
		}
		var next []pf.PfrAddr
		var nadd, ndel, nchange int32
		for _, old := range table {
			i := index(buf, &old)
			if i < 0 {
				ndel++
				continue
			}
			if buf[i].Not != old.Not {
				nchange++
				old.Not = buf[i].Not
			}
			next = append(next, old)
		}
		for _, a := range buf {
			if index(next, &a) < 0 {
				next = append(next, a)
				nadd++
			}
		}
		k.tables[ref] = next
		io.Nadd, io.Ndel, io.Nchange = nadd, ndel, nchange

	case pf.DIOCRGETADDRS:
		if len(table) > len(buf) {
			io.Size = int32(len(table))
			return nil
		}
		copy(buf, table)
		io.Size = int32(len(table))

	case pf.DIOCRTSTADDRS:
		var nmatch int32
		for i := range buf {
			a := &buf[i]
			if !validAddr(a) || a.Net != hostBits(a.Af) {
				return unix.EINVAL
			}
		}
		for i := range buf {
			a := &buf[i]
			a.Fback = pf.FeedbackNone
			if m := lookup(table, a); m != nil {
				if m.Not != 0 {
					a.Fback = pf.FeedbackNotMatch
				} else {
					a.Fback = pf.FeedbackMatch
					nmatch++
				}
			}
		}
		io.Nadd = nmatch

	default:
		return unix.ENOTTY
	}

	return nil
}

func hostBits(af uint8) uint8 {
	if af == pf.AFInet {
		return 32
	}
	return 128
}

func addrLen(af uint8) int {
	if af == pf.AFInet {
		return 4
	}
	return 16
}

// validAddr mirrors the kernel's pfr_validate_addr: a known family, a prefix
// that fits, no host bits beyond the prefix and no feedback set.
func validAddr(a *pf.PfrAddr) bool {
	if a.Af != pf.AFInet && a.Af != pf.AFInet6 {
		return false
	}
	if a.Net > hostBits(a.Af) || a.Not > 1 || a.Fback != pf.FeedbackNone {
		return false
	}
	n := addrLen(a.Af)
	full, rem := int(a.Net)/8, int(a.Net)%8
	if rem != 0 {
		if a.U[full]&(0xff>>rem) != 0 {
			return false
		}
		full++
	}
	for i := full; i < n; i++ {
		if a.U[i] != 0 {
			return false
		}
	}
	return true
}

func validAll(buf []pf.PfrAddr) bool {
	for i := range buf {
		if !validAddr(&buf[i]) {
			return false
		}
	}
	return true
}

func same(x, y *pf.PfrAddr) bool {
	if x.Af != y.Af || x.Net != y.Net {
		return false
	}
	n := addrLen(x.Af)
	return string(x.U[:n]) == string(y.U[:n])
}

func index(table []pf.PfrAddr, a *pf.PfrAddr) int {
	for i := range table {
		if same(&table[i], a) {
			return i
		}
	}
	return -1
}

// lookup returns the longest prefix in table containing the host address a.
func lookup(table []pf.PfrAddr, a *pf.PfrAddr) *pf.PfrAddr {
	var best *pf.PfrAddr
	for i := range table {
		t := &table[i]
		if t.Af != a.Af || !contains(t, a) {
			continue
		}
		if best == nil || t.Net > best.Net {
			best = t
		}
	}
	return best
}

func contains(network, host *pf.PfrAddr) bool {
	full, rem := int(network.Net)/8, int(network.Net)%8
	if string(network.U[:full]) != string(host.U[:full]) {
		return false
	}
	if rem == 0 {
		return true
	}
	mask := byte(0xff << (8 - rem))
	return network.U[full]&mask == host.U[full]&mask
}
