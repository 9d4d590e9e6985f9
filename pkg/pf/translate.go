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
	"bytes"
	"net/netip"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/containernetworking/addrtable/pkg/addrtable"
)

// TableRef names a table: its anchor path ("" is the main ruleset) and its
// name.
type TableRef struct {
	Anchor string
	Name   string
}

func (t TableRef) String() string {
	if t.Anchor == "" {
		return t.Name
	}
	return t.Anchor + ":" + t.Name
}

// EncodeEntry converts e to its kernel representation.
func EncodeEntry(e addrtable.Entry) (PfrAddr, error) {
	a := NewPfrAddr()

	if err := putString(a.Ifname[:], e.Ifname); err != nil {
		return PfrAddr{}, errors.Wrapf(err, "interface of %s", e)
	}

	switch {
	case e.Addr.Is4():
		a.Af = AFInet
		b := e.Addr.As4()
		copy(a.U[:4], b[:])
	case e.Addr.Is6():
		a.Af = AFInet6
		b := e.Addr.As16()
		copy(a.U[:], b[:])
	default:
		return PfrAddr{}, errors.Wrap(ErrTranslation, "entry has no address")
	}
	a.Net = e.Prefix

	return a, nil
}

// DecodeEntry converts a kernel entry back into an addrtable.Entry. Only the
// union bytes belonging to a.Af are read.
func DecodeEntry(a PfrAddr) (addrtable.Entry, error) {
	var e addrtable.Entry

	switch a.Af {
	case AFInet:
		e.Addr = netip.AddrFrom4([4]byte(a.U[:4]))
	case AFInet6:
		e.Addr = netip.AddrFrom16(a.U)
	default:
		return addrtable.Entry{}, errors.Wrapf(ErrUnknownAddressFamily, "af %d", a.Af)
	}

	ifname, err := getString(a.Ifname[:])
	if err != nil {
		return addrtable.Entry{}, errors.Wrap(err, "interface")
	}
	e.Ifname = ifname
	e.Prefix = a.Net

	return e, nil
}

// EncodeTable converts t to its kernel representation.
func EncodeTable(t TableRef) (PfrTable, error) {
	p := NewPfrTable()

	if err := putString(p.Anchor[:], t.Anchor); err != nil {
		return PfrTable{}, errors.Wrap(err, "anchor")
	}
	if err := putString(p.Name[:], t.Name); err != nil {
		return PfrTable{}, errors.Wrap(err, "table name")
	}

	return p, nil
}

// DecodeTable converts a kernel table descriptor back into a TableRef.
func DecodeTable(p PfrTable) (TableRef, error) {
	anchor, err := getString(p.Anchor[:])
	if err != nil {
		return TableRef{}, errors.Wrap(err, "anchor")
	}
	name, err := getString(p.Name[:])
	if err != nil {
		return TableRef{}, errors.Wrap(err, "table name")
	}
	return TableRef{Anchor: anchor, Name: name}, nil
}

// putString copies s into a zeroed fixed buffer. The last byte of dst always
// stays zero.
func putString(dst []byte, s string) error {
	if len(s) >= len(dst) {
		return errors.Wrapf(ErrTranslation, "%q is %d bytes, limit is %d", s, len(s), len(dst)-1)
	}
	copy(dst, s)
	return nil
}

// getString strips trailing zero bytes from a fixed buffer. Interior zero
// bytes are kept.
func getString(src []byte) (string, error) {
	b := bytes.TrimRight(src, "\x00")
	if !utf8.Valid(b) {
		return "", errors.Wrapf(ErrTranslation, "%q is not valid UTF-8", b)
	}
	return string(b), nil
}
