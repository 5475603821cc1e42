package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bmwdex/bmwdex/pkg/bmwcode"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type engineOutput struct {
	Input  string                   `json:"input"`
	Result bmwcode.EngineCodeResult `json:"result"`
	Match  string                   `json:"match_kind,omitempty"`
	Valid  bool                     `json:"valid"`
}

func newEngineCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "engine <text>...",
		Short: "Extract the engine code and family from an engine description",
		Example: `  bmwdex engine "B38A15M0 1.5 L I3 turbo"
  bmwdex engine "N52B25 (325i)" "S58B30T0"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, text := range args {
				res := bmwcode.ExtractEngineCode(text)
				o := engineOutput{
					Input:  text,
					Result: res,
					Match:  bmwcode.MatchKind(text),
					Valid:  bmwcode.IsValidEngineCode(res.Code),
				}
				if opts.json {
					if err := printJSON(out, o); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s\tcode=%s family=%s match=%s valid=%t\n",
					text, orDash(res.Code), orDash(res.EngineFamily), orDash(o.Match), o.Valid)
			}
			return nil
		},
	}
}

func newDecodeCmd(opts *rootOpts) *cobra.Command {
	var (
		foldCase bool
		parts    bool
	)
	cmd := &cobra.Command{
		Use:   "decode <code>",
		Short: "Describe each position of an engine code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := bmwcode.DecodeEngineCodeParts(args[0], bmwcode.DecodeOptions{FoldCase: foldCase})
			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, struct {
					Decoded  string                 `json:"decoded"`
					Complete bool                   `json:"complete"`
					Parts    bmwcode.EngineDecoding `json:"parts"`
				}{d.String(), d.Complete(), d})
			}
			fmt.Fprintln(out, d.String())
			if parts {
				for _, p := range []struct {
					name string
					seg  bmwcode.Segment
				}{
					{"type", d.Type},
					{"cylinders", d.Cylinders},
					{"derivation", d.Derivation},
					{"mounting", d.Mounting},
					{"displacement", d.Displacement},
					{"tuning", d.Tuning},
					{"revision", d.RevisionLabel},
				} {
					fmt.Fprintf(out, "  %-12s %-3s %s\n", p.name, orDash(p.seg.Key), p.seg)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&foldCase, "fold-case", false, "resolve uppercase mounting and tuning letters")
	cmd.Flags().BoolVar(&parts, "parts", false, "print one line per position")
	return cmd
}

func newChassisCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:     "chassis <generation name>",
		Short:   "List the chassis codes in a generation name",
		Example: `  bmwdex chassis "E90/E91/E92/E93"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codes := bmwcode.ExtractChassisCodes(strings.Join(args, " "))
			if opts.json {
				return printJSON(cmd.OutOrStdout(), codes)
			}
			if len(codes) == 0 {
				return fmt.Errorf("no chassis codes in %q", strings.Join(args, " "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(codes, " "))
			return nil
		},
	}
}

func newYearCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:     "year <model year>",
		Short:   "Parse a production window such as \"2019 - present\"",
		Example: `  bmwdex year "2005 – 2013"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := bmwcode.ParseModelYear(strings.Join(args, " "))
			if opts.json {
				return printJSON(cmd.OutOrStdout(), r)
			}
			start, end := "-", "present"
			if r.HasStart() {
				start = fmt.Sprint(*r.StartYear)
			}
			if !r.Ongoing() {
				end = *r.EndYear
			}
			fmt.Fprintf(cmd.OutOrStdout(), "start=%s end=%s\n", start, end)
			return nil
		},
	}
}
