package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/locator-cli/internal/census"
)

var fipsCmd = &cobra.Command{
	Use:   "fips [state|code]",
	Short: "Print state FIPS codes",
	Long:  "Prints the two-digit FIPS code of the named state, the state for a numeric code, or the whole state table when no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printFIPS(cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(fipsCmd)
}

func printFIPS(out io.Writer, args []string) error {
	if len(args) == 1 {
		if isDigits(args[0]) {
			name, ok := census.StateName(args[0])
			if !ok {
				return eris.Errorf("fips: unknown code %q", args[0])
			}
			_, err := fmt.Fprintln(out, name)
			return err
		}
		code, ok := census.FIPS(args[0])
		if !ok {
			return eris.Errorf("fips: unknown state %q", args[0])
		}
		_, err := fmt.Fprintln(out, code)
		return err
	}
	for _, state := range census.States() {
		code, _ := census.FIPS(state)
		if _, err := fmt.Fprintf(out, "%-15s %s\n", state, code); err != nil {
			return err
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
