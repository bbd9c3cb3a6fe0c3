package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cgast/promptreg/internal/config"
	"github.com/cgast/promptreg/internal/report"
	"github.com/cgast/promptreg/pkg/history"
	"github.com/cgast/promptreg/pkg/provider"
	"github.com/cgast/promptreg/pkg/runner"
	"github.com/cgast/promptreg/pkg/suite"
	"github.com/cgast/promptreg/pkg/verify"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		all bool
		tag string
	)
	cmd := &cobra.Command{
		Use:   "run [id...]",
		Short: "Run test cases and record their results",
		Long:  "Run the given test cases (or --tag / --all), save each result and print the evaluation. Exits with status 3 when any test fails.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cases, err := selectCases(a.store, args, tag, all)
			if err != nil {
				return err
			}
			if len(cases) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("No matching test cases."))
				return nil
			}

			r := runner.New(provider.NewFactory(a.cfg.Credentials(), a.logger),
				runner.WithLogger(a.logger))
			results := r.RunBatch(cmd.Context(), cases, a.store.AppendResult)

			out := cmd.OutOrStdout()
			for _, res := range results {
				printResult(out, res)
			}
			s := history.Summarize(results)
			printSummary(out, s)
			if s.Failed > 0 {
				return testsFailed(s.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every saved test case")
	cmd.Flags().StringVar(&tag, "tag", "", "run test cases with this tag")
	return cmd
}

func printResult(w io.Writer, res suite.TestResult) {
	fmt.Fprintf(w, "%s %s %s\n", verdictIcon(res.Passed), styles.Bold.Render(res.TestName),
		styles.Muted.Render(fmt.Sprintf("(%s, %s/%s, %.2fs)", res.TestID, res.Provider, res.Model, res.ExecutionTime)))
	if res.Error != "" {
		fmt.Fprintf(w, "    %s %s\n", styles.Error.Render("error:"), res.Error)
		return
	}
	for _, d := range res.EvaluationResults {
		fmt.Fprintf(w, "    %s %s: %s\n", verdictIcon(d.Passed), d.Description, styles.Muted.Render(d.Details))
	}
}

func printSummary(w io.Writer, s history.Summary) {
	fmt.Fprintf(w, "\n%s  %s  %s  %s\n",
		styles.Success.Render(fmt.Sprintf("%d passed", s.Passed)),
		styles.Error.Render(fmt.Sprintf("%d failed", s.Failed)),
		styles.Warning.Render(fmt.Sprintf("%d manual review", s.Inconclusive)),
		styles.Muted.Render(fmt.Sprintf("avg %.2fs", s.AvgSeconds)))
}

func newResultsCmd(opts *rootOptions) *cobra.Command {
	var (
		testID   string
		statuses []string
		models   []string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := history.Filter{TestID: testID, Models: models}
			for _, raw := range statuses {
				v, ok := history.ParseStatus(raw)
				if !ok {
					return configErrorf("unknown status %q (expected passed, failed or manual)", raw)
				}
				filter.Statuses = append(filter.Statuses, v)
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.store.ListResults()
			if err != nil {
				return err
			}
			results := filter.Apply(all)
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			if len(all) == 0 {
				fmt.Fprintln(out, styles.Muted.Render("No test results yet. Run some tests first!"))
				return nil
			}

			s := history.Summarize(all)
			fmt.Fprintf(out, "%s %d run(s), %.1f%% passed\n", styles.Title.Render("Results"), s.Total, s.PassRate())
			printSummary(out, s)
			fmt.Fprintf(out, "\nShowing %d result(s)\n", len(results))
			for _, res := range results {
				fmt.Fprintf(out, "%s %s  %s  %s\n", verdictIcon(res.Passed), styles.Bold.Render(res.TestName),
					styles.Muted.Render(suite.FormatTimestamp(res.Timestamp)),
					styles.Muted.Render(suite.Truncate(res.Response, 60)))
				if res.Error != "" {
					fmt.Fprintf(out, "    %s %s\n", styles.Error.Render("error:"), res.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&testID, "test", "", "only results for this test id")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status: passed, failed, manual")
	cmd.Flags().StringSliceVar(&models, "model", nil, "filter by model")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newDiffCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Compare each test's latest result with its previous one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.store.ListResults()
			if err != nil {
				return err
			}
			prev, curr := history.Snapshots(results)
			changes := history.Compare(prev, curr)

			out := cmd.OutOrStdout()
			if len(changes) == 0 {
				fmt.Fprintln(out, styles.Muted.Render("No verdict changes."))
				return nil
			}
			for _, c := range changes {
				fmt.Fprintf(out, "%-10s %s  %s → %s\n", changeLabel(c.Type), styles.Bold.Render(c.TestName),
					verdictText(c.Type != history.ChangeAdded, c.Before),
					verdictText(c.Type != history.ChangeRemoved, c.After))
			}
			return nil
		},
	}
}

func changeLabel(typ string) string {
	switch typ {
	case history.ChangeRegressed:
		return styles.Error.Render(typ)
	case history.ChangeFixed:
		return styles.Success.Render(typ)
	default:
		return styles.Warning.Render(typ)
	}
}

func verdictText(present bool, v verify.Verdict) string {
	if !present {
		return "-"
	}
	return v.String()
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		repo   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Open a GitHub issue listing tests whose latest run failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.store.ListResults()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				failed := report.Failures(results)
				if len(failed) == 0 {
					fmt.Fprintln(out, styles.Muted.Render(report.ErrNothingToReport.Error()))
					return nil
				}
				title, body := report.Render(failed, time.Now())
				fmt.Fprintf(out, "%s\n\n%s", styles.Title.Render(title), body)
				return nil
			}

			gh := a.cfg.Report.GitHub
			if repo == "" {
				repo = gh.Repo
			}
			owner, name, err := config.SplitRepo(repo)
			if err != nil {
				return configError(err)
			}
			rep, err := report.NewReporter(gh.Token)
			if err != nil {
				return configError(err)
			}

			issue, err := rep.File(cmd.Context(), owner, name, results, gh.Labels)
			if errors.Is(err, report.ErrNothingToReport) {
				fmt.Fprintln(out, styles.Muted.Render(err.Error()))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s opened issue #%d: %s\n", styles.Success.Render(iconPass), issue.Number, issue.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "repository owner/name (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the issue instead of creating it")
	return cmd
}
