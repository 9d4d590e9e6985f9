// Copyright 2023 CNI authors
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

package utils

import (
	"os"

	"sigs.k8s.io/knftables"
)

// Address table backends.
const (
	PFBackend       = "pf"
	NFTablesBackend = "nftables"
)

// SupportsPF tests whether the pf control device exists at devicePath. (Note
// that this does not test whether the caller may open it.)
func SupportsPF(devicePath string) bool {
	fi, err := os.Stat(devicePath)
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// SupportsNFTables tests whether the system supports using netfilter via the nftables API
// (ie, not via "iptables-nft"). (Note that this returns true if it is *possible* to use
// nftables; it does not test whether any other components on the system are *actually*
// using nftables.)
func SupportsNFTables() bool {
	// knftables.New() does sanity checks so we don't need any further test.
	_, err := knftables.New(knftables.InetFamily, "supports_nftables_test")
	return err == nil
}

// DetectBackend picks pf when its control device is present and nftables
// otherwise. It returns "" when neither is usable.
func DetectBackend(pfDevicePath string) string {
	switch {
	case SupportsPF(pfDevicePath):
		return PFBackend
	case SupportsNFTables():
		return NFTablesBackend
	default:
		return ""
	}
}
