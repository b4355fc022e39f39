package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DeBankDeFi/tahani/pkg/cmdhelper"
	"github.com/DeBankDeFi/tahani/pkg/db"
	"github.com/DeBankDeFi/tahani/pkg/lib/log"
	"github.com/DeBankDeFi/tahani/pkg/shared"
	"github.com/DeBankDeFi/tahani/pkg/types"
	"github.com/DeBankDeFi/tahani/pkg/utils"
	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	shared.SetAppName("tahani")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newApp().root().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type app struct {
	flag types.StoreFlag
}

func newApp() *app {
	return &app{flag: types.StoreFlag{
		Engine:      db.DefaultEngine,
		OpenRetries: 1,
		RetryDelay:  100 * time.Millisecond,
	}}
}

func (a *app) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:          shared.GetAppName(),
		Long:         "Inspect and edit embedded ordered key-value stores.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.flag.DevelopmentMode {
				log.DevelopmentModeWithoutStackTrace()
			} else {
				log.QuietMode()
			}
			log.Debug("command started", zap.String("runtime", shared.RuntimeID()), zap.String("command", cmd.Name()))
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !a.flag.Metrics {
				return nil
			}
			return printMetrics(cmd.ErrOrStderr())
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmdhelper.ResolveFlagVariable(cmd, &a.flag)

	cmd.AddCommand(a.getCmd())
	cmd.AddCommand(a.putCmd())
	cmd.AddCommand(a.deleteCmd())
	cmd.AddCommand(a.scanCmd())
	cmd.AddCommand(a.destroyCmd())
	cmd.AddCommand(a.repairCmd())
	cmd.AddCommand(a.copyCmd())
	cmd.AddCommand(a.dumpCmd())
	cmd.AddCommand(a.loadCmd())
	cmd.AddCommand(a.execCmd())
	cmd.AddCommand(cmdhelper.Version())
	return cmd
}

func (a *app) options() *db.Options {
	return &db.Options{
		Engine:        a.flag.Engine,
		ErrorIfExists: a.flag.ErrorIfExists,
		Sync:          a.flag.Sync,
		DontFillCache: a.flag.DontFillCache,
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// open opens the selected store. A store locked by another process is retried
// with backoff up to --open-retries attempts.
func (a *app) open(ctx context.Context, name string, opts *db.Options) (*db.DB, error) {
	if name == "" {
		return nil, errors.New("no store given, use --store")
	}
	attempts := a.flag.OpenRetries
	if attempts == 0 {
		attempts = 1
	}
	var d *db.DB
	err := retry.Do(
		func() error {
			var err error
			d, err = db.Open(name, opts)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(a.flag.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, utils.ErrStoreOpen) && !opts.ErrorIfExists
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("store busy, retrying", log.Store(name), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return d, nil
}

// withStore opens the selected store for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(d *db.DB) error) (err error) {
	d, err := a.open(contextOf(cmd), a.flag.Store, a.options())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", d.Name())
		}
	}()
	return fn(d)
}

func printMetrics(w io.Writer) error {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "tahani_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	return nil
}
