package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safesite-labs/sitelog-intake/internal/common"
)

var teamsCommand = &cobra.Command{
	Use:   "teams [label...]",
	Short: "Show the team roster, or resolve labels against it",
	Long: `Without arguments, prints the roster loaded from TEAM_ROSTER_PATH in
registry order. With arguments, resolves each label the same way commit does
and prints the matched team, so roster issues surface before a batch run.`,
	RunE: runTeamsCmd,
}

func init() {
	rootCmd.AddCommand(teamsCommand)
}

func runTeamsCmd(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := common.LoadConfig()

	registry, err := loadRegistry(cfg, logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		roster := registry.Teams()
		if len(roster) == 0 {
			fmt.Fprintln(out, "Roster is empty; every label will get a synthesized ad-hoc team.")
			return nil
		}
		for _, t := range roster {
			fmt.Fprintf(out, "%-12s %s\n", t.ID, t.DisplayName)
		}
		return nil
	}

	for _, label := range args {
		id := registry.Resolve(label)
		if id.Synthesized {
			fmt.Fprintf(out, "%-30q -> no match, ad-hoc %s (kept as %q)\n", label, id.ID, id.DisplayName)
		} else {
			fmt.Fprintf(out, "%-30q -> %s (%s)\n", label, id.DisplayName, id.ID)
		}
	}
	return nil
}
