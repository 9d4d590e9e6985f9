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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/containernetworking/addrtable/pkg/addrtable"
	"github.com/containernetworking/addrtable/pkg/errors"
)

func newWatchCmd(o *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "watch TABLE -f FILE",
		Short: "Keep a table in sync with an address file",
		Long: `Replace the contents of a table with the addresses in a file, then again
every time the file is written, until interrupted.

Example:
  addrtable watch blocked -f /etc/blocklist.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.watch(ctx, cmd, args[0], file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "address file to follow")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// watch syncs table from file until ctx is done.
func (o *options) watch(ctx context.Context, cmd *cobra.Command, table, file string) error {
	s, err := o.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	sync := func() error {
		entries, err := addrtable.ReadFile(file)
		if err != nil {
			return err
		}
		unlock, err := lockTable(s.cfg.LockDir, table)
		if err != nil {
			return err
		}
		defer unlock()

		changes, err := s.mgr.Replace(table, entries)
		if err != nil {
			return errors.Annotatef(err, "replace %s", table)
		}
		s.log.Info().Str("table", table).Str("file", file).
			Int("entries", len(entries)).Int("added", changes.Added).Int("deleted", changes.Deleted).
			Msg("table synced")
		return nil
	}
	if err := sync(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Annotate(err, "creating file watcher")
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	file = filepath.Clean(file)
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		return errors.Annotatef(err, "watching %s", file)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("file watcher closed")
			}
			if filepath.Clean(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.log.Debug().Str("file", file).Stringer("op", event.Op).Msg("address file changed")
			if err := sync(); err != nil {
				s.log.Error().Err(err).Str("table", table).Msg("sync failed, keeping previous contents")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("file watcher closed")
			}
			s.log.Warn().Err(err).Msg("file watcher error")
		}
	}
}
