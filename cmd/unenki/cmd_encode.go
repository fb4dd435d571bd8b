package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/unenki/internal/config"
	"github.com/ajitpratap0/unenki/internal/metrics"
	"github.com/ajitpratap0/unenki/pkg/ansiencode"
)

func encodeCmd() *cobra.Command {
	var (
		keep  []string
		force []string
		table string
	)

	cmd := &cobra.Command{
		Use:   "encode [text...]",
		Short: "Escape control and non-ASCII characters as \\uXXXX",
		Long: `Encode rewrites every escapable character as a lowercase \uXXXX escape.
Characters outside the Basic Multilingual Plane become two escapes, one per
UTF-16 surrogate. Text is read from the arguments or, if none, from stdin.

Examples:
  printf '\033[32mTEST\033[39m' | unenki encode
  unenki encode --keep '"' --force '\n=\n' "$(cat colored.txt)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			opts := &ansiencode.Options{}
			for _, k := range keep {
				r, parseErr := parseChar(k)
				if parseErr != nil {
					return fmt.Errorf("encode: --keep: %w", parseErr)
				}
				opts.Keep = append(opts.Keep, r)
			}
			for _, f := range force {
				r, repl, parseErr := parseForce(f)
				if parseErr != nil {
					return fmt.Errorf("encode: --force: %w", parseErr)
				}
				if opts.Force == nil {
					opts.Force = make(map[rune]string)
				}
				opts.Force[r] = repl
			}

			ec := cfg.Encode
			if table != "" {
				ec.Table = table
				if table != config.TableHTML && table != config.TableControl {
					return fmt.Errorf("encode: --table must be %q or %q", config.TableHTML, config.TableControl)
				}
			}

			out := ec.Encoder().Encode(text, ec.Options().Merge(opts))
			metrics.Inc(metrics.EncodeTotal)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringArrayVar(&keep, "keep", nil, "character to leave unescaped (repeatable; Go escapes like \\x1b accepted)")
	cmd.Flags().StringArrayVar(&force, "force", nil, "CHAR=REPLACEMENT rule applied before escaping (repeatable)")
	cmd.Flags().StringVar(&table, "table", "", "reference table: html or control (default from config)")
	return cmd
}

func stripCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strip [text...]",
		Short: "Remove ANSI color codes from raw text",
		Long: `Strip encodes the text with the default table and no options, then removes
the escaped color codes. The output stays in encoded form.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			metrics.Inc(metrics.StripTotal)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ansiencode.Strip(text))
			return err
		},
	}
}

func stripEncodedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strip-encoded [text...]",
		Short: "Remove escaped color codes such as \\u001b[32m from encoded text",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			metrics.Inc(metrics.StripEncodedTotal)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ansiencode.StripEncoded(text))
			return err
		},
	}
}
