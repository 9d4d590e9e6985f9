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

// Package nftset stores address tables in nftables sets. A table named T
// is kept as two interval sets in one inet table: T_v4 holding ipv4_addr
// elements and T_v6 holding ipv6_addr elements.
package nftset

import (
	"context"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"sigs.k8s.io/knftables"

	"github.com/containernetworking/addrtable/pkg/addrtable"
)

// DefaultTable is the nftables table holding the sets.
const DefaultTable = "addrtable"

// Manager implements addrtable.Manager on top of nftables.
type Manager struct {
	nft knftables.Interface
	log zerolog.Logger
}

var _ addrtable.Manager = &Manager{}

// New returns a Manager using the inet table named table.
func New(table string, log zerolog.Logger) (*Manager, error) {
	if table == "" {
		table = DefaultTable
	}
	nft, err := knftables.New(knftables.InetFamily, table)
	if err != nil {
		return nil, err
	}
	return NewWithInterface(nft, log), nil
}

// NewWithInterface returns a Manager driving nft, which must be bound to an
// inet table.
func NewWithInterface(nft knftables.Interface, log zerolog.Logger) *Manager {
	return &Manager{nft: nft, log: log}
}

func setName(name string, v6 bool) string {
	if v6 {
		return name + "_v6"
	}
	return name + "_v4"
}

// key returns the nftables element key for e.
func key(e addrtable.Entry) (string, error) {
	if e.Ifname != "" {
		return "", errors.Wrapf(addrtable.ErrUnsupported, "%s: nftables sets cannot match interfaces", e)
	}
	addr := e.Addr.Unmap()
	if !addr.IsValid() || int(e.Prefix) > addr.BitLen() {
		return "", errors.Wrapf(addrtable.ErrUnsupported, "%s: invalid prefix", e)
	}
	if int(e.Prefix) == addr.BitLen() {
		return addr.String(), nil
	}
	p := netip.PrefixFrom(addr, int(e.Prefix))
	if p.Masked().Addr() != addr {
		return "", errors.Wrapf(addrtable.ErrUnsupported, "%s: host bits set beyond the prefix", e)
	}
	return p.String(), nil
}

func parseKey(k string) (addrtable.Entry, error) {
	if strings.Contains(k, "/") {
		p, err := netip.ParsePrefix(k)
		if err != nil {
			return addrtable.Entry{}, err
		}
		return addrtable.Entry{Addr: p.Addr(), Prefix: uint8(p.Bits())}, nil
	}
	addr, err := netip.ParseAddr(k)
	if err != nil {
		return addrtable.Entry{}, err
	}
	return addrtable.HostEntry(addr), nil
}

// member is an entry together with the set and key it is stored under.
type member struct {
	set   string
	key   string
	entry addrtable.Entry
}

func toMembers(name string, entries []addrtable.Entry) ([]member, error) {
	members := make([]member, 0, len(entries))
	seen := map[string]bool{}
	for _, e := range entries {
		k, err := key(e)
		if err != nil {
			return nil, err
		}
		set := setName(name, e.Addr.Unmap().Is6())
		if seen[set+" "+k] {
			continue
		}
		seen[set+" "+k] = true
		members = append(members, member{set: set, key: k, entry: e})
	}
	return members, nil
}

// list returns the current members of both sets.
func (m *Manager) list(name string) ([]member, error) {
	var members []member
	for _, v6 := range []bool{false, true} {
		set := setName(name, v6)
		elems, err := m.nft.ListElements(context.TODO(), "set", set)
		if err != nil {
			if knftables.IsNotFound(err) {
				return nil, errors.Wrapf(addrtable.ErrNotFound, "set %s", set)
			}
			return nil, err
		}
		for _, elem := range elems {
			if len(elem.Key) != 1 {
				return nil, errors.Errorf("unexpected key %v in set %s", elem.Key, set)
			}
			e, err := parseKey(elem.Key[0])
			if err != nil {
				return nil, errors.Wrapf(err, "element of set %s", set)
			}
			members = append(members, member{set: set, key: elem.Key[0], entry: e})
		}
	}
	return members, nil
}

// listOrEmpty is list, with a missing table reported as an empty one.
func (m *Manager) listOrEmpty(name string) ([]member, error) {
	members, err := m.list(name)
	if errors.Is(err, addrtable.ErrNotFound) {
		return nil, nil
	}
	return members, err
}

func index(members []member) map[string]bool {
	idx := make(map[string]bool, len(members))
	for _, mb := range members {
		idx[mb.set+" "+mb.key] = true
	}
	return idx
}

// ensure adds the table and both sets to tx.
func ensure(tx *knftables.Transaction, name string) {
	tx.Add(&knftables.Table{
		Comment: knftables.PtrTo("Address tables managed by github.com/containernetworking/addrtable"),
	})
	tx.Add(&knftables.Set{
		Name:  setName(name, false),
		Type:  "ipv4_addr",
		Flags: []knftables.SetFlag{knftables.IntervalFlag},
	})
	tx.Add(&knftables.Set{
		Name:  setName(name, true),
		Type:  "ipv6_addr",
		Flags: []knftables.SetFlag{knftables.IntervalFlag},
	})
}

func (m *Manager) run(op, name string, elements int, tx *knftables.Transaction) error {
	err := m.nft.Run(context.TODO(), tx)
	m.log.Debug().Err(err).Str("op", op).Str("table", name).Int("elements", elements).
		Msg("nftables set transaction")
	return err
}

// Get returns the IPv4 entries followed by the IPv6 entries of the table.
func (m *Manager) Get(name string) ([]addrtable.Entry, error) {
	members, err := m.list(name)
	if err != nil {
		return nil, err
	}
	entries := make([]addrtable.Entry, 0, len(members))
	for _, mb := range members {
		entries = append(entries, mb.entry)
	}
	return entries, nil
}

// Add creates the sets if needed and inserts the entries not yet present.
func (m *Manager) Add(name string, entries []addrtable.Entry) (int, error) {
	want, err := toMembers(name, entries)
	if err != nil {
		return 0, err
	}
	have, err := m.listOrEmpty(name)
	if err != nil {
		return 0, err
	}
	present := index(have)

	tx := m.nft.NewTransaction()
	ensure(tx, name)
	added := 0
	for _, mb := range want {
		if present[mb.set+" "+mb.key] {
			continue
		}
		tx.Add(&knftables.Element{Set: mb.set, Key: []string{mb.key}})
		added++
	}
	if err := m.run("add", name, added, tx); err != nil {
		return 0, err
	}
	return added, nil
}

// Delete removes the entries that are present.
func (m *Manager) Delete(name string, entries []addrtable.Entry) (int, error) {
	want, err := toMembers(name, entries)
	if err != nil {
		return 0, err
	}
	have, err := m.list(name)
	if err != nil {
		return 0, err
	}
	present := index(have)

	tx := m.nft.NewTransaction()
	deleted := 0
	for _, mb := range want {
		if !present[mb.set+" "+mb.key] {
			continue
		}
		tx.Delete(&knftables.Element{Set: mb.set, Key: []string{mb.key}})
		deleted++
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := m.run("delete", name, deleted, tx); err != nil {
		return 0, err
	}
	return deleted, nil
}

// Clear flushes both sets.
func (m *Manager) Clear(name string) (int, error) {
	have, err := m.list(name)
	if err != nil {
		return 0, err
	}

	tx := m.nft.NewTransaction()
	tx.Flush(&knftables.Set{Name: setName(name, false)})
	tx.Flush(&knftables.Set{Name: setName(name, true)})
	if err := m.run("clear", name, len(have), tx); err != nil {
		return 0, err
	}
	return len(have), nil
}

// Replace flushes the sets and refills them in a single transaction.
func (m *Manager) Replace(name string, entries []addrtable.Entry) (addrtable.Changes, error) {
	want, err := toMembers(name, entries)
	if err != nil {
		return addrtable.Changes{}, err
	}
	have, err := m.listOrEmpty(name)
	if err != nil {
		return addrtable.Changes{}, err
	}

	var changes addrtable.Changes
	present, wanted := index(have), index(want)
	for _, mb := range want {
		if !present[mb.set+" "+mb.key] {
			changes.Added++
		}
	}
	for _, mb := range have {
		if !wanted[mb.set+" "+mb.key] {
			changes.Deleted++
		}
	}

	tx := m.nft.NewTransaction()
	ensure(tx, name)
	tx.Flush(&knftables.Set{Name: setName(name, false)})
	tx.Flush(&knftables.Set{Name: setName(name, true)})
	for _, mb := range want {
		tx.Add(&knftables.Element{Set: mb.set, Key: []string{mb.key}})
	}
	if err := m.run("replace", name, len(want), tx); err != nil {
		return addrtable.Changes{}, err
	}
	return changes, nil
}

// Test returns how many of the addresses fall inside an element of the
// table.
func (m *Manager) Test(name string, entries []addrtable.Entry) (int, error) {
	have, err := m.list(name)
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, e := range entries {
		addr := e.Addr.Unmap()
		for _, mb := range have {
			if mb.entry.NetPrefix().Contains(addr) {
				matched++
				break
			}
		}
	}
	return matched, nil
}
