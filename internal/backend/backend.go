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

// Package backend opens the address table Manager selected by configuration.
package backend

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/containernetworking/addrtable/pkg/addrtable"
	"github.com/containernetworking/addrtable/pkg/errors"
	"github.com/containernetworking/addrtable/pkg/nftset"
	"github.com/containernetworking/addrtable/pkg/pf"
	"github.com/containernetworking/addrtable/pkg/utils"
)

// Options selects and parameterizes a backend.
type Options struct {
	// Backend is utils.PFBackend, utils.NFTablesBackend or empty to detect.
	Backend string
	// Device is the pf control device.
	Device string
	// Anchor is the pf anchor the tables live in.
	Anchor string
	// NFTablesTable is the nftables table holding the sets.
	NFTablesTable string
}

var detectBackend = utils.DetectBackend

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the Manager for opts. The Closer releases the backend's
// handle and must be called when the Manager is no longer used.
func Open(opts Options, log zerolog.Logger) (addrtable.Manager, io.Closer, error) {
	if opts.Device == "" {
		opts.Device = pf.DefaultDevicePath
	}

	name := opts.Backend
	if name == "" {
		name = detectBackend(opts.Device)
		if name == "" {
			return nil, nil, fmt.Errorf("neither pf (%s) nor nftables is available", opts.Device)
		}
	}
	log = log.With().Str("component", name).Logger()

	switch name {
	case utils.PFBackend:
		dev, err := pf.Open(opts.Device)
		if err != nil {
			return nil, nil, errors.Annotate(err, "opening pf control device")
		}
		return pf.NewManager(dev, opts.Anchor, log), dev, nil
	case utils.NFTablesBackend:
		mgr, err := nftset.New(opts.NFTablesTable, log)
		if err != nil {
			return nil, nil, errors.Annotate(err, "initializing nftables")
		}
		return mgr, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
}
