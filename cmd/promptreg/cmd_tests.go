package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cgast/promptreg/internal/config"
	"github.com/cgast/promptreg/pkg/store"
	"github.com/cgast/promptreg/pkg/suite"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteDefault(opts.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", styles.Success.Render(iconPass), opts.configPath)
			return nil
		},
	}
}

// loadSuiteFile checks a suite file against the schema, parses it and
// validates every case.
func loadSuiteFile(path string, vars map[string]string) (suite.Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return suite.Suite{}, fmt.Errorf("read suite %s: %w", path, err)
	}
	if err := suite.ValidateSchema(data); err != nil {
		return suite.Suite{}, configError(err)
	}
	s, err := suite.ParseSuite(data, vars)
	if err != nil {
		return suite.Suite{}, configError(err)
	}
	if result := suite.ValidateSuite(s); !result.Valid() {
		return s, configError(result)
	}
	return s, nil
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <suite.yaml>",
		Short: "Check a suite file without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSuiteFile(args[0], nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid (%d test(s))\n",
				styles.Success.Render(iconPass), args[0], len(s.Cases))
			return nil
		},
	}
}

// parseVars turns k=v flag values into a map.
func parseVars(raw []string) (map[string]string, error) {
	vars := make(map[string]string, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, configErrorf("invalid --var %q (expected key=value)", kv)
		}
		vars[k] = v
	}
	return vars, nil
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var rawVars []string
	cmd := &cobra.Command{
		Use:   "import <suite.yaml>",
		Short: "Validate a suite file and save its test cases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVars(rawVars)
			if err != nil {
				return err
			}
			s, err := loadSuiteFile(args[0], vars)
			if err != nil {
				return err
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, tc := range s.Cases {
				if err := a.store.SaveTestCase(tc); err != nil {
					return err
				}
				a.logger.Debug("test case saved", "id", tc.ID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s imported %d test(s) from %s\n",
				styles.Success.Render(iconPass), len(s.Cases), args[0])
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&rawVars, "var", nil, "template variable key=value (repeatable)")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print saved test cases as a suite file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cases, err := selectCases(a.store, nil, tag, true)
			if err != nil {
				return err
			}
			data, err := suite.Marshal(cases)
			if err != nil {
				return fmt.Errorf("marshal suite: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only export test cases with this tag")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved test cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cases, err := selectCases(a.store, nil, tag, true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cases) == 0 {
				fmt.Fprintln(out, styles.Muted.Render("No test cases yet. Import a suite first."))
				return nil
			}
			for _, tc := range cases {
				fmt.Fprintf(out, "%s  %s  %s\n",
					styles.Bold.Render(tc.ID),
					tc.Name,
					styles.Muted.Render(fmt.Sprintf("%s/%s  %d expectation(s)  [%s]  %s",
						tc.Provider, tc.Model, len(tc.Expectations),
						strings.Join(tc.Tags, ", "), suite.FormatTimestamp(tc.CreatedAt))))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only list test cases with this tag")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a test case and its latest result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tc, err := a.store.GetTestCase(args[0])
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%s\n", styles.Title.Render(tc.Name))
			fmt.Fprintf(&b, "ID:          %s\n", tc.ID)
			fmt.Fprintf(&b, "Provider:    %s / %s\n", tc.Provider, tc.Model)
			fmt.Fprintf(&b, "Temperature: %.2f  Max tokens: %d\n", tc.Temperature, tc.MaxTokens)
			if len(tc.Tags) > 0 {
				fmt.Fprintf(&b, "Tags:        %s\n", strings.Join(tc.Tags, ", "))
			}
			if tc.SystemPrompt != "" {
				fmt.Fprintf(&b, "System:      %s\n", tc.SystemPrompt)
			}
			fmt.Fprintf(&b, "Prompt:      %s\n", tc.Prompt)
			fmt.Fprintf(&b, "Expectations:\n")
			for _, exp := range tc.Expectations {
				fmt.Fprintf(&b, "  • %s\n", exp.Label())
			}

			results, err := a.store.ResultsForTest(tc.ID)
			if err != nil {
				return err
			}
			if n := len(results); n > 0 {
				last := results[n-1]
				fmt.Fprintf(&b, "Last run:    %s %s (%s, %.2fs, %d run(s) total)",
					verdictIcon(last.Passed), verdictLabel(last.Passed),
					suite.FormatTimestamp(last.Timestamp), last.ExecutionTime, n)
			} else {
				fmt.Fprintf(&b, "Last run:    never")
			}

			fmt.Fprintln(cmd.OutOrStdout(), styles.Box.Render(b.String()))
			return nil
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a test case (its results are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteTestCase(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s\n", styles.Success.Render(iconPass), args[0])
			return nil
		},
	}
}

// selectCases resolves explicit ids, a tag, or (when all is set) every
// saved test case.
func selectCases(st store.Gateway, ids []string, tag string, all bool) ([]suite.TestCase, error) {
	if len(ids) > 0 {
		cases := make([]suite.TestCase, 0, len(ids))
		for _, id := range ids {
			tc, err := st.GetTestCase(id)
			if errors.Is(err, store.ErrNotFound) {
				return nil, configErrorf("unknown test case %q", id)
			}
			if err != nil {
				return nil, err
			}
			cases = append(cases, tc)
		}
		return cases, nil
	}
	if tag == "" && !all {
		return nil, configErrorf("specify test ids, --tag or --all")
	}

	saved, err := st.ListTestCases()
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return saved, nil
	}
	cases := make([]suite.TestCase, 0, len(saved))
	for _, tc := range saved {
		if tc.HasTag(tag) {
			cases = append(cases, tc)
		}
	}
	return cases, nil
}
