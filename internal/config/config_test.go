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

package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/containernetworking/addrtable/internal/config"
)

var _ = Describe("Load", func() {
	It("applies the defaults", func() {
		cfg, err := config.Load(config.New(), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(*cfg).To(Equal(config.Config{
			Device:   "/dev/pf",
			NFTables: config.NFTablesConfig{Table: "addrtable"},
			LogLevel: "info",
		}))
	})

	It("reads a config file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "addrtable.yaml")
		Expect(os.WriteFile(path, []byte(`
backend: nftables
anchor: relayd
log_level: debug
lock_dir: /run/addrtable
nftables:
  table: filter_sets
`), 0o644)).To(Succeed())

		cfg, err := config.Load(config.New(), path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Backend).To(Equal("nftables"))
		Expect(cfg.Anchor).To(Equal("relayd"))
		Expect(cfg.LogLevel).To(Equal("debug"))
		Expect(cfg.LockDir).To(Equal("/run/addrtable"))
		Expect(cfg.NFTables.Table).To(Equal("filter_sets"))
		Expect(cfg.Device).To(Equal("/dev/pf"))
	})

	It("lets the environment override defaults", func() {
		GinkgoT().Setenv("ADDRTABLE_ANCHOR", "from-env")
		GinkgoT().Setenv("ADDRTABLE_NFTABLES_TABLE", "env_table")

		cfg, err := config.Load(config.New(), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Anchor).To(Equal("from-env"))
		Expect(cfg.NFTables.Table).To(Equal("env_table"))
	})

	It("fails on a missing config file", func() {
		_, err := config.Load(config.New(), filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(MatchError(ContainSubstring("reading config file")))
	})
})

var _ = DescribeTable("Validate",
	func(cfg config.Config, msg string) {
		err := cfg.Validate()
		if msg == "" {
			Expect(err).NotTo(HaveOccurred())
			return
		}
		Expect(err).To(MatchError(ContainSubstring(msg)))
	},
	Entry("valid pf", config.Config{Backend: "pf", Device: "/dev/pf", NFTables: config.NFTablesConfig{Table: "t"}, LogLevel: "info"}, ""),
	Entry("nftables needs no device", config.Config{Backend: "nftables", NFTables: config.NFTablesConfig{Table: "t"}, LogLevel: "warn"}, ""),
	Entry("unknown backend", config.Config{Backend: "ipfw", Device: "/dev/pf", NFTables: config.NFTablesConfig{Table: "t"}, LogLevel: "info"}, "backend must be"),
	Entry("empty device", config.Config{Backend: "pf", NFTables: config.NFTablesConfig{Table: "t"}, LogLevel: "info"}, "device must not be empty"),
	Entry("empty nftables table", config.Config{Device: "/dev/pf", LogLevel: "info"}, "nftables.table"),
	Entry("bad log level", config.Config{Device: "/dev/pf", NFTables: config.NFTablesConfig{Table: "t"}, LogLevel: "loud"}, "log_level"),
)
