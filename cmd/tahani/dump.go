package main

import (
	"fmt"
	"io"
	"os"

	"github.com/DeBankDeFi/tahani/pkg/cmdhelper"
	"github.com/DeBankDeFi/tahani/pkg/db"
	"github.com/DeBankDeFi/tahani/pkg/dump"
	"github.com/DeBankDeFi/tahani/pkg/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump FILE",
		Short: "Write a consistent copy of the store to FILE, - for stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(d *db.DB) (err error) {
				w := cmd.OutOrStdout()
				if args[0] != "-" {
					f, ferr := os.Create(args[0])
					if ferr != nil {
						return errors.WithStack(ferr)
					}
					defer func() {
						if cerr := f.Close(); cerr != nil && err == nil {
							err = errors.WithStack(cerr)
						}
					}()
					w = f
				}

				snap, err := d.NewSnapshot()
				if err != nil {
					return err
				}
				defer snap.Release()
				it, err := d.NewIterator(snap)
				if err != nil {
					return err
				}
				defer it.Destroy()

				n, err := dump.Export(w, dump.Header{Engine: d.Engine(), Store: d.Name()}, it)
				if err != nil {
					return errors.Wrapf(err, "dump %s", d.Name())
				}
				if args[0] != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "dumped %d entries\n", n)
				}
				return nil
			})
		},
	}
}

func (a *app) loadCmd() *cobra.Command {
	lf := types.LoadFlag{BatchSize: 1000}
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Load a dump from FILE, - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.WithStack(err)
				}
				defer f.Close()
				r = f
			}
			return a.withStore(cmd, func(d *db.DB) error {
				h, n, err := dump.Import(r, d, lf.BatchSize)
				if err != nil {
					return errors.Wrapf(err, "load into %s", d.Name())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d entries from %s store %s\n", n, h.Engine, h.Store)
				return nil
			})
		},
	}
	cmdhelper.ResolveLocalFlagVariable(cmd, &lf)
	return cmd
}
