package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/bmwdex/bmwdex/engine/catalog"
)

type syncOpts struct {
	natsURL string
	kinds   []string
	timeout time.Duration
}

func newSyncCmd(opts *rootOpts) *cobra.Command {
	so := &syncOpts{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ask catalog-sync to resync its data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nc, err := nats.Connect(so.natsURL, nats.Name("bmwdex-cli"))
			if err != nil {
				return fmt.Errorf("nats connect: %w", err)
			}
			defer nc.Close()
			return runSync(cmd, opts, so, catalog.NewClient(nc))
		},
	}
	cmd.Flags().StringVar(&so.natsURL, "nats", nats.DefaultURL, "NATS server URL")
	cmd.Flags().StringSliceVar(&so.kinds, "kinds", nil, "payload kinds to sync (cars, engines)")
	cmd.Flags().DurationVar(&so.timeout, "timeout", 5*time.Minute, "how long to wait for the reply")
	return cmd
}

type syncClient interface {
	Sync(ctx context.Context, req catalog.SyncRequest) (catalog.SyncReply, error)
}

func runSync(cmd *cobra.Command, opts *rootOpts, so *syncOpts, client syncClient) error {
	req := catalog.SyncRequest{}
	for _, k := range so.kinds {
		kind := catalog.Kind(k)
		if kind != catalog.KindCars && kind != catalog.KindEngines {
			return fmt.Errorf("unknown kind %q", k)
		}
		req.Kinds = append(req.Kinds, kind)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, so.timeout)
	defer cancel()

	reply, err := client.Sync(ctx, req)
	if err != nil {
		return fmt.Errorf("sync request: %w", err)
	}
	if opts.json {
		if err := printJSON(cmd.OutOrStdout(), reply); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, r := range reply.Results {
			line := fmt.Sprintf("%-8s %-7s %s", r.Status, r.Kind, r.File)
			if r.Error != "" {
				line += "  " + r.Error
			}
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, reply.Message)
	}
	if reply.Error != "" {
		return fmt.Errorf("sync failed: %s", reply.Error)
	}
	return nil
}
