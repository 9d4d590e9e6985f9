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

// Package addrtable holds the types shared by every address table backend:
// the table entry, the Manager interface and the parsers for entries given
// on the command line or in address files.
package addrtable

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is matched by errors reporting that the named table does
	// not exist in the backend.
	ErrNotFound = errors.New("table does not exist")

	// ErrUnsupported is returned when an entry cannot be stored by a backend.
	ErrUnsupported = errors.New("entry not supported by backend")
)

// IsNotFound tests whether err reports a missing table.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Entry is one member of an address table.
type Entry struct {
	Addr netip.Addr
	// Ifname is the interface the entry originates from; empty when unset.
	Ifname string
	// Prefix is the network prefix length, 0-32 for IPv4 and 0-128 for IPv6.
	Prefix uint8
}

// HostEntry returns an entry covering exactly addr.
func HostEntry(addr netip.Addr) Entry {
	addr = addr.Unmap().WithZone("")
	return Entry{Addr: addr, Prefix: uint8(addr.BitLen())}
}

// String formats the entry as addr/prefix, followed by @ifname when an
// interface is set.
func (e Entry) String() string {
	s := fmt.Sprintf("%s/%d", e.Addr, e.Prefix)
	if e.Ifname != "" {
		s += "@" + e.Ifname
	}
	return s
}

// NetPrefix returns the entry as a netip.Prefix.
func (e Entry) NetPrefix() netip.Prefix {
	return netip.PrefixFrom(e.Addr, int(e.Prefix))
}

// ParseEntry parses "addr", "addr/prefix", each optionally followed by
// "@ifname". A bare address covers a single host.
func ParseEntry(s string) (Entry, error) {
	var e Entry

	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		e.Ifname = s[i+1:]
		s = s[:i]
		if e.Ifname == "" {
			return Entry{}, fmt.Errorf("empty interface name in %q", s)
		}
	}

	addrPart, prefixPart, hasPrefix := strings.Cut(s, "/")
	addr, err := netip.ParseAddr(addrPart)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid address %q: %v", addrPart, err)
	}
	addr = addr.Unmap()
	if addr.Zone() != "" {
		return Entry{}, fmt.Errorf("address %q must not carry a zone", addrPart)
	}
	e.Addr = addr
	e.Prefix = uint8(addr.BitLen())

	if hasPrefix {
		bits, err := strconv.ParseUint(prefixPart, 10, 8)
		if err != nil || int(bits) > addr.BitLen() {
			return Entry{}, fmt.Errorf("invalid prefix length %q for %s", prefixPart, addr)
		}
		e.Prefix = uint8(bits)
	}

	return e, nil
}

// ParseEntryList parses every string with ParseEntry.
func ParseEntryList(args []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(args))
	for _, arg := range args {
		e, err := ParseEntry(arg)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Changes reports what a Replace did to a table.
type Changes struct {
	Added   int
	Deleted int
	Changed int
}

// Manager manipulates the contents of named address tables. Every call is
// an independent, synchronous exchange with the backend.
type Manager interface {
	// Get returns the entries of the table.
	Get(name string) ([]Entry, error)
	// Add inserts entries and returns how many were not already present.
	Add(name string, entries []Entry) (int, error)
	// Delete removes entries and returns how many were present.
	Delete(name string, entries []Entry) (int, error)
	// Clear removes every entry and returns how many were removed.
	Clear(name string) (int, error)
	// Replace makes the table hold exactly entries.
	Replace(name string, entries []Entry) (Changes, error)
	// Test returns how many of entries are matched by the table.
	Test(name string, entries []Entry) (int, error)
}
