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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/containernetworking/addrtable/pkg/errors"
)

func newShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show TABLE",
		Short: "List the entries of a table",
		Long: `List the entries of a table, one per line.

Example:
  addrtable show blocked
  addrtable --anchor relayd show webhosts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			return o.withTable(cmd, table, func(s *session) error {
				entries, err := s.mgr.Get(table)
				if err != nil {
					return errors.Annotatef(err, "show %s", table)
				}
				for _, e := range entries {
					fmt.Fprintln(cmd.OutOrStdout(), e)
				}
				return nil
			})
		},
	}
}

func newFlushCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "flush TABLE",
		Short: "Remove every entry of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			return o.withTable(cmd, table, func(s *session) error {
				n, err := s.mgr.Clear(table)
				if err != nil {
					return errors.Annotatef(err, "flush %s", table)
				}
				s.log.Debug().Str("table", table).Int("deleted", n).Msg("flushed table")
				fmt.Fprintf(cmd.OutOrStdout(), "%d addresses deleted.\n", n)
				return nil
			})
		},
	}
}
