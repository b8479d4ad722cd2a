package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/netalarm/internal/api/client"
	"github.com/netalarm/internal/models"
	"github.com/spf13/cobra"
)

func NewRuleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rule",
		Short:   "Correlation rule management commands",
		Aliases: []string{"rules", "r"},
	}

	cmd.AddCommand(newRuleListCommand())
	cmd.AddCommand(newRuleGetCommand())
	cmd.AddCommand(newRuleCreateCommand())
	cmd.AddCommand(newRuleDeleteCommand())
	cmd.AddCommand(newRuleImportCommand())
	cmd.AddCommand(newRuleExportCommand())

	return cmd
}

func newRuleListCommand() *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List correlation rules",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			var enabled *bool
			if enabledOnly {
				enabled = &enabledOnly
			}
			rules, err := c.ListRules(enabled)
			if err != nil {
				return fmt.Errorf("failed to list rules: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tPRIORITY\tNAME\tENABLED\tWINDOW(s)\tSUPPRESS")
			for _, r := range rules {
				fmt.Fprintf(w, "%d\t%d\t%s\t%t\t%d\t%t\n",
					r.ID, r.Priority, r.Name, r.Enabled, r.TimeWindow,
					r.Actions.SuppressChildAlarms)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Only show enabled rules")
	return cmd
}

func newRuleGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show a rule as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %v", err)
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			rule, err := c.GetRule(uint(id))
			if err != nil {
				return fmt.Errorf("failed to get rule: %v", err)
			}

			out, err := json.MarshalIndent(rule, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newRuleCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a rule from JSON on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rule models.AlarmRule
			if err := json.NewDecoder(os.Stdin).Decode(&rule); err != nil {
				return fmt.Errorf("invalid rule JSON: %v", err)
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.CreateRule(&rule); err != nil {
				return fmt.Errorf("failed to create rule: %v", err)
			}

			fmt.Printf("Rule %q created\n", rule.Name)
			return nil
		},
	}
}

func newRuleImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import rules from a JSON file (all or nothing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %v", err)
			}
			var rules []models.AlarmRule
			if err := json.Unmarshal(data, &rules); err != nil {
				return fmt.Errorf("invalid rules JSON: %v", err)
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.ImportRules(rules); err != nil {
				return fmt.Errorf("failed to import rules: %v", err)
			}

			fmt.Printf("Imported %d rules\n", len(rules))
			return nil
		},
	}
}

func newRuleExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export rules to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			rules, err := c.ListRules(nil)
			if err != nil {
				return fmt.Errorf("failed to fetch rules: %v", err)
			}

			data, err := json.MarshalIndent(rules, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0644); err != nil {
				return fmt.Errorf("failed to write file: %v", err)
			}

			fmt.Printf("Exported %d rules to %s\n", len(rules), args[0])
			return nil
		},
	}
}

func newRuleDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %v", err)
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.DeleteRule(uint(id)); err != nil {
				return fmt.Errorf("failed to delete rule: %v", err)
			}

			fmt.Printf("Rule %d deleted\n", id)
			return nil
		},
	}
}
