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

// Package cmd implements the addrtable command line.
package cmd

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-filemutex"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/containernetworking/addrtable/internal/backend"
	"github.com/containernetworking/addrtable/internal/config"
	"github.com/containernetworking/addrtable/pkg/addrtable"
	"github.com/containernetworking/addrtable/pkg/errors"
	bv "github.com/containernetworking/addrtable/pkg/utils/buildversion"
)

type openFunc func(backend.Options, zerolog.Logger) (addrtable.Manager, io.Closer, error)

type options struct {
	v          *viper.Viper
	configFile string
	open       openFunc
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := newRootCmd(&options{open: backend.Open}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(o *options) *cobra.Command {
	o.v = config.New()

	rootCmd := &cobra.Command{
		Use:   "addrtable",
		Short: "Manage packet filter address tables",
		Long: `addrtable inspects and edits the address tables of the packet filter.

On OpenBSD tables are manipulated through /dev/pf, optionally inside an
anchor. On Linux each table is kept as a pair of nftables sets.`,
		Version:      bv.BuildString("cli"),
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&o.configFile, "config", "c", "", "config file path")
	flags.StringP("backend", "b", "", "backend: pf or nftables (default detected)")
	flags.StringP("anchor", "a", "", "pf anchor holding the table")
	flags.String("device", "", "pf control device (default /dev/pf)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	for key, flag := range map[string]string{
		"backend":   "backend",
		"anchor":    "anchor",
		"device":    "device",
		"log_level": "log-level",
	} {
		// Only errors on a nil flag.
		_ = o.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newShowCmd(o),
		newAddCmd(o),
		newDeleteCmd(o),
		newFlushCmd(o),
		newReplaceCmd(o),
		newTestCmd(o),
		newWatchCmd(o),
	)
	return rootCmd
}

func setupLogger(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(lvl).With().Timestamp().Logger()
}

// session is an opened backend together with the loaded configuration.
type session struct {
	cfg *config.Config
	log zerolog.Logger
	mgr addrtable.Manager
	io.Closer
}

func (o *options) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return nil, err
	}
	log := setupLogger(cfg.LogLevel, cmd.ErrOrStderr())

	mgr, closer, err := o.open(backend.Options{
		Backend:       cfg.Backend,
		Device:        cfg.Device,
		Anchor:        cfg.Anchor,
		NFTablesTable: cfg.NFTables.Table,
	}, log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, mgr: mgr, Closer: closer}, nil
}

// withTable runs fn on an opened backend while holding the lock of table.
func (o *options) withTable(cmd *cobra.Command, table string, fn func(*session) error) error {
	s, err := o.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	unlock, err := lockTable(s.cfg.LockDir, table)
	if err != nil {
		return err
	}
	defer unlock()

	return fn(s)
}

// lockTable takes the lock file of table under dir. An empty dir disables
// locking.
func lockTable(dir, table string) (func(), error) {
	if dir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Annotate(err, "creating lock directory")
	}

	path := filepath.Join(dir, strings.ReplaceAll(table, "/", "_")+".lock")
	lock, err := filemutex.New(path)
	if err != nil {
		return nil, errors.Annotatef(err, "opening lock %s", path)
	}
	if err := lock.Lock(); err != nil {
		lock.Close()
		return nil, errors.Annotatef(err, "locking %s", path)
	}
	return func() {
		lock.Unlock()
		lock.Close()
	}, nil
}

// readEntries parses the address arguments followed by the contents of
// file, if set.
func readEntries(args []string, file string) ([]addrtable.Entry, error) {
	entries, err := addrtable.ParseEntryList(args)
	if err != nil {
		return nil, err
	}
	if file != "" {
		more, err := addrtable.ReadFile(file)
		if err != nil {
			return nil, err
		}
		entries = append(entries, more...)
	}
	return entries, nil
}
