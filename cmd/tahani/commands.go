package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/DeBankDeFi/tahani/pkg/cmdhelper"
	"github.com/DeBankDeFi/tahani/pkg/db"
	"github.com/DeBankDeFi/tahani/pkg/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(d *db.DB) error {
				val, ok, err := d.Get([]byte(args[0]))
				if err != nil {
					return err
				}
				if !ok {
					return errors.Errorf("%q: not found", args[0])
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", val)
				return err
			})
		},
	}
}

func (a *app) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY VALUE",
		Short: "Store VALUE under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(d *db.DB) error {
				return d.Put([]byte(args[0]), []byte(args[1]))
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY...",
		Short: "Delete keys in one atomic write",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(d *db.DB) error {
				b := db.NewBatch()
				defer b.Destroy()
				for _, key := range args {
					if err := b.Delete([]byte(key)); err != nil {
						return err
					}
				}
				return b.Write(d)
			})
		},
	}
}

func (a *app) scanCmd() *cobra.Command {
	var sf types.ScanFlag
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List entries in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(d *db.DB) error {
				return scan(cmd.OutOrStdout(), d, sf)
			})
		},
	}
	cmdhelper.ResolveLocalFlagVariable(cmd, &sf)
	return cmd
}

func scan(w io.Writer, d *db.DB, sf types.ScanFlag) error {
	var snap *db.Snapshot
	if sf.Snapshot {
		var err error
		if snap, err = d.NewSnapshot(); err != nil {
			return err
		}
		defer snap.Release()
	}
	it, err := d.NewIterator(snap)
	if err != nil {
		return err
	}
	defer it.Destroy()

	start := []byte(sf.Start)
	var ok bool
	switch {
	case sf.Start == "" && sf.Reverse:
		ok = it.SeekToLast()
	case sf.Start == "":
		ok = it.SeekToFirst()
	case sf.Reverse:
		// the last key <= start
		if ok = it.Seek(start); !ok {
			ok = it.SeekToLast()
		} else if key, err := it.Key(); err != nil {
			return err
		} else if bytes.Compare(key, start) > 0 {
			ok = it.Prev()
		}
	default:
		ok = it.Seek(start)
	}
	step := it.Next
	if sf.Reverse {
		step = it.Prev
	}

	for n := 0; ok && (sf.Limit <= 0 || n < sf.Limit); ok, n = step(), n+1 {
		key, err := it.Key()
		if err != nil {
			return err
		}
		if sf.KeysOnly {
			fmt.Fprintln(w, render(key, sf.Hex))
			continue
		}
		value, err := it.Value()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", render(key, sf.Hex), render(value, sf.Hex))
	}
	return it.Error()
}

func render(b []byte, asHex bool) string {
	if asHex {
		return hex.EncodeToString(b)
	}
	return string(b)
}

func (a *app) destroyCmd() *cobra.Command {
	var df struct {
		Yes bool `type:"bool" shorthand:"y" usage:"confirm deleting every file of the store"`
	}
	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete a store that is not open anywhere",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !df.Yes {
				return errors.Errorf("refusing to destroy %s without --yes", a.flag.Store)
			}
			if a.flag.Store == "" {
				return errors.New("no store given, use --store")
			}
			return db.Destroy(a.flag.Store, a.options())
		},
	}
	cmdhelper.ResolveLocalFlagVariable(cmd, &df)
	return cmd
}

func (a *app) repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Recover a store after an unclean shutdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flag.Store == "" {
				return errors.New("no store given, use --store")
			}
			return db.Repair(a.flag.Store, a.options())
		},
	}
}

func (a *app) copyCmd() *cobra.Command {
	var cf types.CopyFlag
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy every entry of the store into another store in one write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cf.To == "" {
				return errors.New("no destination given, use --to")
			}
			opts := a.options()
			opts.ErrorIfExists = false
			if cf.ToEngine != "" {
				opts.Engine = cf.ToEngine
			}
			return a.withStore(cmd, func(src *db.DB) error {
				dst, err := a.open(contextOf(cmd), cf.To, opts)
				if err != nil {
					return err
				}
				defer dst.Close()
				n, err := copyStore(src, dst)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "copied %d entries\n", n)
				return nil
			})
		},
	}
	cmdhelper.ResolveLocalFlagVariable(cmd, &cf)
	return cmd
}

// copyStore reads src through a snapshot and writes everything to dst as one
// batch.
func copyStore(src, dst *db.DB) (int, error) {
	snap, err := src.NewSnapshot()
	if err != nil {
		return 0, err
	}
	defer snap.Release()
	it, err := src.NewIterator(snap)
	if err != nil {
		return 0, err
	}
	defer it.Destroy()

	b := db.NewBatch()
	defer b.Destroy()
	for ok := it.SeekToFirst(); ok; ok = it.Next() {
		key, err := it.Key()
		if err != nil {
			return 0, err
		}
		value, err := it.Value()
		if err != nil {
			return 0, err
		}
		if err := b.Put(key, value); err != nil {
			return 0, err
		}
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	if err := b.Write(dst); err != nil {
		return 0, err
	}
	return b.Len(), nil
}
