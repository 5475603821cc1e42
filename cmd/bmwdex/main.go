// Command bmwdex parses BMW identifiers from the command line and talks to
// a running catalog-sync over NATS.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bmwdex/bmwdex/pkg/bmwcode"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type rootOpts struct {
	json    bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}
	root := &cobra.Command{
		Use:           "bmwdex",
		Short:         "BMW engine, chassis and model-year toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			bmwcode.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log recovered parser failures")

	root.AddCommand(
		newEngineCmd(opts),
		newDecodeCmd(opts),
		newChassisCmd(opts),
		newYearCmd(opts),
		newValidateCmd(opts),
		newSyncCmd(opts),
	)
	return root
}
