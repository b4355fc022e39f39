package cmdhelper

import (
	"fmt"

	"github.com/DeBankDeFi/tahani/pkg/db"
	"github.com/DeBankDeFi/tahani/pkg/engine"
	"github.com/DeBankDeFi/tahani/pkg/shared"

	"github.com/spf13/cobra"
)

func Version() *cobra.Command {
	cmd := cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), shared.AppInfo())
			fmt.Fprintf(cmd.OutOrStdout(), "Engines: \t%v (default %s)\n", engine.Drivers(), db.DefaultEngine)
		},
	}
	return &cmd
}
