package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bellavista/internal/evaluation"
	"bellavista/internal/intent"
)

var sweepCandidates = []float64{0.3, 0.35, 0.4, 0.45, 0.5, 0.55, 0.6, 0.7}

func newEvaluateCmd() *cobra.Command {
	var (
		scenarios []string
		corpus    string
		sweep     bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the matcher, parser and keyword responder against labelled corpora",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			catalog, err := loadCatalog(cfg, logger)
			if err != nil {
				return err
			}
			evaluator := evaluation.NewEvaluator(intent.NewParser(newMatcher(cfg, catalog)))
			if corpus != "" {
				if err := evaluator.LoadScenarios(corpus); err != nil {
					return err
				}
			}

			var results []*evaluation.EvaluationResult
			if len(scenarios) == 0 {
				results, err = evaluator.EvaluateAll(cmd.Context())
				if err != nil {
					return err
				}
			}
			for _, id := range scenarios {
				result, err := evaluator.Evaluate(cmd.Context(), id)
				if err != nil {
					return err
				}
				results = append(results, result)
			}

			var points []evaluation.SweepPoint
			if sweep {
				points = evaluation.SweepThresholds(catalog.Items(), evaluator.MatchCases(), sweepCandidates)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{"results": results, "sweep": points})
			}
			printResults(out, results)
			if sweep {
				printSweep(out, points)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scenarios, "scenario", nil, "scenario ids to run (default all)")
	cmd.Flags().StringVar(&corpus, "corpus", "", "YAML file with extra scenarios")
	cmd.Flags().BoolVar(&sweep, "sweep", false, "also sweep the match score threshold")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func printResults(w io.Writer, results []*evaluation.EvaluationResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tCASES\tMETRIC\tSCORE")
	for _, r := range results {
		names := make([]string, 0, len(r.Metrics))
		for name := range r.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%.3f\n", r.Scenario, r.Cases, name, r.Metrics[name])
		}
	}
	tw.Flush()

	for _, r := range results {
		for _, f := range r.Failures {
			fmt.Fprintf(w, "FAIL %s [%s] %q: want %q, got %q\n", r.Scenario, f.Kind, f.Input, f.Want, f.Got)
		}
	}
}

func printSweep(w io.Writer, points []evaluation.SweepPoint) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "THRESHOLD\tACCURACY\tLOOSE")
	for _, p := range points {
		fmt.Fprintf(tw, "%.2f\t%.3f\t%.3f\n", p.Threshold, p.Accuracy, p.LooseRate)
	}
	tw.Flush()

	if best, ok := evaluation.BestThreshold(points); ok {
		fmt.Fprintf(w, "best match threshold: %.2f\n", best.Threshold)
	}
}
