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
	"net/netip"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/containernetworking/addrtable/pkg/addrtable"
)

// The kernel only fills a GETADDRS buffer that can hold the whole table. If
// the table keeps growing between the size query and the fill, give up
// after this many fills.
const maxGetAttempts = 8

// Manager manipulates pf tables through a control device. It keeps no state
// between calls.
type Manager struct {
	dev    Device
	anchor string
	log    zerolog.Logger
}

var _ addrtable.Manager = &Manager{}

// NewManager returns a Manager for tables under anchor ("" for the main
// ruleset).
func NewManager(dev Device, anchor string, log zerolog.Logger) *Manager {
	return &Manager{dev: dev, anchor: anchor, log: log}
}

func (m *Manager) fire(r *TableRequest, cmd Command) error {
	err := r.Fire(m.dev, cmd)
	m.log.Debug().Err(err).
		Stringer("cmd", cmd).
		Stringer("table", r.Table).
		Int("size", r.Size).
		Int("added", r.Added).
		Int("deleted", r.Deleted).
		Int("changed", r.Changed).
		Msg("pf table ioctl")
	return err
}

// Get returns the entries of the named table in the order the kernel
// reports them.
func (m *Manager) Get(name string) ([]addrtable.Entry, error) {
	r := NewTableRequest(m.anchor, name)

	// With an empty buffer the kernel only reports the table size.
	if err := m.fire(r, GetAddrs); err != nil {
		return nil, err
	}

	placeholder := addrtable.Entry{Addr: netip.IPv4Unspecified()}
	for attempt := 0; attempt < maxGetAttempts; attempt++ {
		want := r.Size
		r.Entries = make([]addrtable.Entry, want)
		for i := range r.Entries {
			r.Entries[i] = placeholder
		}
		if err := m.fire(r, GetAddrs); err != nil {
			return nil, err
		}
		// A smaller table was filled and truncated by update; a larger one
		// only reported its new size.
		if r.Size <= want {
			return r.Entries, nil
		}
		m.log.Debug().Str("table", name).Int("expected", want).Int("size", r.Size).
			Msg("table grew between size query and fill, resizing")
	}

	return nil, errors.Errorf("pf: table %q kept changing size after %d attempts", name, maxGetAttempts)
}

// Add inserts entries and returns how many the kernel added.
func (m *Manager) Add(name string, entries []addrtable.Entry) (int, error) {
	r := NewTableRequest(m.anchor, name)
	r.Entries = entries
	if err := m.fire(r, AddAddrs); err != nil {
		return 0, err
	}
	return r.Added, nil
}

// Delete removes entries and returns how many the kernel deleted.
func (m *Manager) Delete(name string, entries []addrtable.Entry) (int, error) {
	r := NewTableRequest(m.anchor, name)
	r.Entries = entries
	if err := m.fire(r, DelAddrs); err != nil {
		return 0, err
	}
	return r.Deleted, nil
}

// Clear empties the table and returns how many entries were removed.
func (m *Manager) Clear(name string) (int, error) {
	r := NewTableRequest(m.anchor, name)
	if err := m.fire(r, ClrAddrs); err != nil {
		return 0, err
	}
	return r.Deleted, nil
}

// Replace makes the table hold exactly entries.
func (m *Manager) Replace(name string, entries []addrtable.Entry) (addrtable.Changes, error) {
	r := NewTableRequest(m.anchor, name)
	r.Entries = entries
	if err := m.fire(r, SetAddrs); err != nil {
		return addrtable.Changes{}, err
	}
	return addrtable.Changes{Added: r.Added, Deleted: r.Deleted, Changed: r.Changed}, nil
}

// Test returns how many of entries match the table. The kernel reports the
// match count in pfrio_nadd.
func (m *Manager) Test(name string, entries []addrtable.Entry) (int, error) {
	r := NewTableRequest(m.anchor, name)
	r.Entries = entries
	if err := m.fire(r, TstAddrs); err != nil {
		return 0, err
	}
	return r.Added, nil
}
