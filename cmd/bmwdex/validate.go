package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bmwdex/bmwdex/engine/catalog"
	"github.com/bmwdex/bmwdex/engine/domain"
)

type validation struct {
	File  string       `json:"file"`
	Kind  catalog.Kind `json:"kind"`
	Valid bool         `json:"valid"`
	Error string       `json:"error,omitempty"`
}

func newValidateCmd(opts *rootOpts) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check payload files before they are received",
		Long: `Validate decodes each payload file and runs the same checks the
receive routes apply. The kind is taken from the parent directory
(cars or engines) unless --kind is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				v := validateFile(cmd.Context(), path, catalog.Kind(kind))
				if !v.Valid {
					failed++
				}
				if opts.json {
					if err := printJSON(cmd.OutOrStdout(), v); err != nil {
						return err
					}
					continue
				}
				status := "ok"
				if !v.Valid {
					status = "invalid: " + v.Error
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", path, orDash(string(v.Kind)), status)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files invalid", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "payload kind: cars or engines")
	return cmd
}

func validateFile(ctx context.Context, path string, kind catalog.Kind) validation {
	v := validation{File: path, Kind: kind}
	if v.Kind == "" {
		k, ok := catalog.KindOf(path)
		if !ok {
			v.Error = "cannot infer kind; pass --kind"
			return v
		}
		v.Kind = k
	}
	data, err := os.ReadFile(path)
	if err != nil {
		v.Error = err.Error()
		return v
	}
	switch v.Kind {
	case catalog.KindCars:
		var p domain.CarPayload
		if err = json.Unmarshal(data, &p); err == nil {
			_, err = catalog.ValidateCar(ctx, p).Unwrap()
		}
	case catalog.KindEngines:
		var p domain.EnginePayload
		if err = json.Unmarshal(data, &p); err == nil {
			_, err = catalog.ValidateEngine(ctx, p).Unwrap()
		}
	default:
		err = fmt.Errorf("unknown kind %q", v.Kind)
	}
	if err != nil {
		v.Error = err.Error()
		return v
	}
	v.Valid = true
	return v
}
