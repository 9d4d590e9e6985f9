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

// This is a chained plugin that keeps the addresses of containers in a packet
// filter address table, so that filter rules can refer to every container of
// a network by one table name.
//
// On ADD each IP of the previous result is added to the table as a host
// entry; DEL removes them again. The table is a pf table on OpenBSD and a
// pair of nftables sets on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/netip"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog"

	"github.com/containernetworking/cni/pkg/skel"
	"github.com/containernetworking/cni/pkg/types"
	current "github.com/containernetworking/cni/pkg/types/100"
	"github.com/containernetworking/cni/pkg/version"

	"github.com/containernetworking/addrtable/internal/backend"
	"github.com/containernetworking/addrtable/pkg/addrtable"
	"github.com/containernetworking/addrtable/pkg/errors"
	"github.com/containernetworking/addrtable/pkg/utils"
	bv "github.com/containernetworking/addrtable/pkg/utils/buildversion"
)

// PluginConf is the network configuration of the addrtable plugin.
type PluginConf struct {
	types.NetConf

	// Table receives the container addresses. It may be overridden per
	// container with args.cni.addrTable.
	Table string `json:"table"`
	// Backend is "pf" or "nftables"; detected when empty.
	Backend string `json:"backend,omitempty"`
	// Anchor is the pf anchor holding Table.
	Anchor string `json:"anchor,omitempty"`
	// Device is the pf control device.
	Device string `json:"device,omitempty"`
	// NFTablesTable is the nftables table holding the sets.
	NFTablesTable string `json:"nftablesTable,omitempty"`
}

var openManager = backend.Open

// pluginLogger sends backend logs to the same place as the log package;
// stdout carries the CNI result.
func pluginLogger() zerolog.Logger {
	return zerolog.New(log.Writer()).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

// parseConfig parses the supplied configuration (and prevResult) from stdin.
func parseConfig(stdin []byte) (*PluginConf, error) {
	conf := PluginConf{}

	if err := json.Unmarshal(stdin, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse network configuration: %v", err)
	}

	if err := version.ParsePrevResult(&conf.NetConf); err != nil {
		return nil, fmt.Errorf("could not parse prevResult: %v", err)
	}

	table, err := jsonparser.GetString(stdin, "args", "cni", "addrTable")
	switch {
	case err == nil:
		conf.Table = table
	case err != jsonparser.KeyPathNotFoundError:
		return nil, fmt.Errorf("invalid args.cni.addrTable: %v", err)
	}

	if conf.Table == "" {
		return nil, fmt.Errorf("table must be specified")
	}
	switch conf.Backend {
	case "", utils.PFBackend, utils.NFTablesBackend:
	default:
		return nil, fmt.Errorf("unknown backend %q", conf.Backend)
	}
	if conf.NFTablesTable == "" {
		conf.NFTablesTable = "addrtable"
	}

	return &conf, nil
}

func (c *PluginConf) backendOptions() backend.Options {
	return backend.Options{
		Backend:       c.Backend,
		Device:        c.Device,
		Anchor:        c.Anchor,
		NFTablesTable: c.NFTablesTable,
	}
}

// withManager opens the configured backend for the duration of fn.
func withManager(conf *PluginConf, fn func(addrtable.Manager) error) error {
	mgr, closer, err := openManager(conf.backendOptions(), pluginLogger())
	if err != nil {
		return err
	}
	defer closer.Close()
	return fn(mgr)
}

// hostEntries returns one host entry per IP of result.
func hostEntries(result *current.Result) ([]addrtable.Entry, error) {
	entries := make([]addrtable.Entry, 0, len(result.IPs))
	for _, ipc := range result.IPs {
		addr, ok := netip.AddrFromSlice(ipc.Address.IP)
		if !ok {
			return nil, fmt.Errorf("invalid IP %q in prevResult", ipc.Address.IP)
		}
		entries = append(entries, addrtable.HostEntry(addr))
	}
	return entries, nil
}

func prevEntries(conf *PluginConf) ([]addrtable.Entry, error) {
	result, err := current.NewResultFromResult(conf.PrevResult)
	if err != nil {
		return nil, fmt.Errorf("failed to convert prevResult: %v", err)
	}
	return hostEntries(result)
}

func cmdAdd(args *skel.CmdArgs) error {
	conf, err := parseConfig(args.StdinData)
	if err != nil {
		return err
	}

	if conf.PrevResult == nil {
		return fmt.Errorf("must be called as chained plugin")
	}

	entries, err := prevEntries(conf)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return types.PrintResult(conf.PrevResult, conf.CNIVersion)
	}

	err = withManager(conf, func(mgr addrtable.Manager) error {
		n, err := mgr.Add(conf.Table, entries)
		if err != nil {
			return errors.Annotatef(err, "adding container %s addresses to table %s", args.ContainerID, conf.Table)
		}
		log.Printf("added %d of %d addresses of container %s to table %s", n, len(entries), args.ContainerID, conf.Table)
		return nil
	})
	if err != nil {
		return err
	}

	// Pass through the previous result
	return types.PrintResult(conf.PrevResult, conf.CNIVersion)
}

func cmdDel(args *skel.CmdArgs) error {
	conf, err := parseConfig(args.StdinData)
	if err != nil {
		return err
	}

	// Without a prevResult there is nothing we know to remove.
	if conf.PrevResult == nil {
		return nil
	}

	entries, err := prevEntries(conf)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	return withManager(conf, func(mgr addrtable.Manager) error {
		_, err := mgr.Delete(conf.Table, entries)
		if addrtable.IsNotFound(err) {
			return nil
		}
		return errors.Annotatef(err, "deleting container %s addresses from table %s", args.ContainerID, conf.Table)
	})
}

func cmdCheck(args *skel.CmdArgs) error {
	conf, err := parseConfig(args.StdinData)
	if err != nil {
		return err
	}

	// Ensure we have previous result.
	if conf.PrevResult == nil {
		return fmt.Errorf("Required prevResult missing")
	}

	entries, err := prevEntries(conf)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	return withManager(conf, func(mgr addrtable.Manager) error {
		n, err := mgr.Test(conf.Table, entries)
		if err != nil {
			return errors.Annotatef(err, "checking table %s", conf.Table)
		}
		if n != len(entries) {
			return fmt.Errorf("table %s holds %d of %d addresses of container %s", conf.Table, n, len(entries), args.ContainerID)
		}
		return nil
	})
}

// cmdStatus reports whether the backend can be opened.
func cmdStatus(args *skel.CmdArgs) error {
	conf, err := parseConfig(args.StdinData)
	if err != nil {
		return err
	}
	return withManager(conf, func(addrtable.Manager) error { return nil })
}

func main() {
	skel.PluginMainFuncs(skel.CNIFuncs{
		Add:    cmdAdd,
		Check:  cmdCheck,
		Del:    cmdDel,
		Status: cmdStatus,
		/* FIXME GC */
	}, version.All, bv.BuildString("addrtable"))
}
