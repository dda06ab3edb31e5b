package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/locator-cli/internal/census"
	"github.com/sells-group/locator-cli/internal/config"
)

var (
	popState    string
	popCounty   string
	popStrategy string
	popDataset  string
)

var populationCmd = &cobra.Command{
	Use:   "population",
	Short: "Resolve the population of a single county",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("population") {
			cfg.Census.Strategy = popStrategy
		}
		if cmd.Flags().Changed("dataset") {
			cfg.Census.DatasetPath = popDataset
		}
		return runPopulation(ctx, cfg, popState, popCounty, cmd.OutOrStdout())
	},
}

func init() {
	populationCmd.Flags().StringVar(&popState, "state", "", "full state name, e.g. California (required)")
	populationCmd.Flags().StringVar(&popCounty, "county", "", "county name without the County suffix (required)")
	populationCmd.Flags().StringVar(&popStrategy, "population", "", "population strategy: api or table")
	populationCmd.Flags().StringVar(&popDataset, "dataset", "", "population dataset path or URL")
	_ = populationCmd.MarkFlagRequired("state")
	_ = populationCmd.MarkFlagRequired("county")
	rootCmd.AddCommand(populationCmd)
}

func runPopulation(ctx context.Context, c *config.Config, state, county string, out io.Writer) error {
	if err := c.Validate("population"); err != nil {
		return err
	}
	resolver, err := census.New(ctx, c.Census, newFetcher(c))
	if err != nil {
		return eris.Wrap(err, "population: resolver")
	}
	pop, err := resolver.Population(ctx, state, county)
	if err != nil {
		return eris.Wrap(err, "population: resolve")
	}
	_, err = fmt.Fprintf(out, "%s, %s: %s\n", county, state, pop)
	return err
}
