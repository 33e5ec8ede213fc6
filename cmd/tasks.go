package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/assetflow/internal/logging"
	"github.com/conneroisu/assetflow/internal/tasks"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List every task and how they compose",
	Long: `List the registered tasks with their aliases and, for composed tasks,
whether their members run in series or in parallel.

Examples:
  assetflow tasks              # Table
  assetflow tasks -f json      # JSON
  assetflow tasks --format yaml`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

var tasksFlags *StandardFlags

func init() {
	rootCmd.AddCommand(tasksCmd)

	tasksFlags = AddStandardFlags(tasksCmd, "output")
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	infos := tasks.New(cfg, logging.NewNopLogger()).List()
	out := cmd.OutOrStdout()

	switch tasksFlags.OutputFormat {
	case "json":
		return outputTasksJSON(out, infos)
	case "yaml":
		return outputTasksYAML(out, infos)
	case "table":
		return outputTasksTable(out, infos)
	default:
		return fmt.Errorf("unsupported format: %s", tasksFlags.OutputFormat)
	}
}

func outputTasksJSON(out io.Writer, infos []tasks.Info) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(infos)
}

func outputTasksYAML(out io.Writer, infos []tasks.Info) error {
	encoder := yaml.NewEncoder(out)
	defer encoder.Close()
	return encoder.Encode(infos)
}

func outputTasksTable(out io.Writer, infos []tasks.Info) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tMEMBERS\tALIASES\tDESCRIPTION")
	for _, info := range infos {
		members := "-"
		if len(info.Members) > 0 {
			sep := ", "
			if info.Kind == "series" {
				sep = " -> "
			}
			members = strings.Join(info.Members, sep)
		}
		aliases := "-"
		if len(info.Aliases) > 0 {
			aliases = strings.Join(info.Aliases, ", ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", info.Name, info.Kind, members, aliases, info.Description)
	}
	return w.Flush()
}
