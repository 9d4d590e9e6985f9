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

	"github.com/containernetworking/addrtable/pkg/addrtable"
	"github.com/containernetworking/addrtable/pkg/errors"
)

type modifyOp struct {
	use, short, verb string
	apply            func(addrtable.Manager, string, []addrtable.Entry) (int, error)
}

func newAddCmd(o *options) *cobra.Command {
	return newModifyCmd(o, modifyOp{
		use:   "add TABLE [ADDRESS...]",
		short: "Add addresses to a table",
		verb:  "added",
		apply: addrtable.Manager.Add,
	})
}

func newDeleteCmd(o *options) *cobra.Command {
	return newModifyCmd(o, modifyOp{
		use:   "delete TABLE [ADDRESS...]",
		short: "Delete addresses from a table",
		verb:  "deleted",
		apply: addrtable.Manager.Delete,
	})
}

func newModifyCmd(o *options, op modifyOp) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   op.use,
		Short: op.short,
		Long: op.short + `. Addresses are written as ADDR, ADDR/PREFIX or either
followed by @IFNAME, and may also be read from a file.

Example:
  addrtable add blocked 192.0.2.1 2001:db8::/32
  addrtable delete blocked -f stale.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			entries, err := readEntries(args[1:], file)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no addresses given")
			}

			return o.withTable(cmd, table, func(s *session) error {
				n, err := op.apply(s.mgr, table, entries)
				if err != nil {
					return errors.Annotatef(err, "%s %s", cmd.Name(), table)
				}
				s.log.Debug().Str("table", table).Int(op.verb, n).Msg(cmd.Name())
				fmt.Fprintf(cmd.OutOrStdout(), "%d/%d addresses %s.\n", n, len(entries), op.verb)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read addresses from file")
	return cmd
}

func newReplaceCmd(o *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "replace TABLE [ADDRESS...]",
		Short: "Make a table hold exactly the given addresses",
		Long: `Make a table hold exactly the given addresses. With no addresses and no
file the table is emptied. With the nftables backend the table is created
if it does not exist; a pf table must already be defined.

Example:
  addrtable replace blocked -f blocklist.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			entries, err := readEntries(args[1:], file)
			if err != nil {
				return err
			}

			return o.withTable(cmd, table, func(s *session) error {
				changes, err := s.mgr.Replace(table, entries)
				if err != nil {
					return errors.Annotatef(err, "replace %s", table)
				}
				printChanges(cmd, changes)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read addresses from file")
	return cmd
}

func printChanges(cmd *cobra.Command, c addrtable.Changes) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d addresses added.\n", c.Added)
	fmt.Fprintf(out, "%d addresses deleted.\n", c.Deleted)
	if c.Changed > 0 {
		fmt.Fprintf(out, "%d addresses changed.\n", c.Changed)
	}
}

func newTestCmd(o *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "test TABLE [ADDRESS...]",
		Short: "Test whether addresses match a table",
		Long: `Test whether addresses match a table. The command fails unless every
address matches.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			entries, err := readEntries(args[1:], file)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no addresses given")
			}

			return o.withTable(cmd, table, func(s *session) error {
				n, err := s.mgr.Test(table, entries)
				if err != nil {
					return errors.Annotatef(err, "test %s", table)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d/%d addresses match.\n", n, len(entries))
				if n != len(entries) {
					return fmt.Errorf("%d of %d addresses do not match", len(entries)-n, len(entries))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read addresses from file")
	return cmd
}
