package commands

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/netalarm/internal/api/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewLoginCommand() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to NetAlarm and save the API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return err
			}
			token, err := c.Login(username, password)
			if err != nil {
				return fmt.Errorf("login failed: %v", err)
			}

			viper.Set("token", token)
			if err := viper.WriteConfig(); err != nil {
				return fmt.Errorf("failed to save token: %v", err)
			}
			fmt.Println("Login successful")
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func NewAlarmCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alarm",
		Short:   "Alarm management commands",
		Aliases: []string{"alarms", "a"},
	}

	cmd.AddCommand(newAlarmListCommand())
	cmd.AddCommand(newAlarmGroupCommand())
	cmd.AddCommand(newAlarmAcknowledgeCommand())
	cmd.AddCommand(newAlarmClearCommand())
	cmd.AddCommand(newRecorrelateCommand())

	return cmd
}

func newAlarmListCommand() *cobra.Command {
	var (
		status string
		action string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List alarms",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			alarms, err := c.ListAlarms(status, action)
			if err != nil {
				return fmt.Errorf("failed to list alarms: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tRESOURCE\tSEVERITY\tSTATUS\tACTION\tGROUP\tFIRST SEEN")

			for _, a := range alarms {
				group := "-"
				if a.CorrelationID != nil {
					group = *a.CorrelationID
					if len(group) > 8 {
						group = group[:8]
					}
				}
				fmt.Fprintf(w, "%d\t%s\t%s/%s\t%s\t%s\t%s\t%s\t%s\n",
					a.ID,
					a.AlarmType,
					a.ResourceType,
					a.ResourceID,
					a.Severity,
					a.Status,
					a.CorrelationAction,
					group,
					a.FirstOccurrence.Format(time.RFC3339),
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (ACTIVE/ACKNOWLEDGED/SUPPRESSED/CLEARED)")
	cmd.Flags().StringVar(&action, "action", "", "Filter by correlation action (NONE/ROOT_CAUSE/CHILD_ALARM/DUPLICATE/FLAPPING)")

	return cmd
}

func newAlarmGroupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "group [correlation_id]",
		Short: "Show a correlation group, root cause first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			group, err := c.GetCorrelationGroup(args[0])
			if err != nil {
				return fmt.Errorf("failed to get group: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tROLE\tTYPE\tRESOURCE\tSTATUS\tFIRST SEEN")
			for _, a := range group {
				role := "member"
				if a.IsRootCause {
					role = "ROOT CAUSE"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s/%s\t%s\t%s\n",
					a.ID, role, a.AlarmType, a.ResourceType, a.ResourceID,
					a.Status, a.FirstOccurrence.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func newAlarmAcknowledgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "acknowledge [alarm_id]",
		Short:   "Acknowledge an alarm",
		Aliases: []string{"ack"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid alarm ID: %v", err)
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.AcknowledgeAlarm(uint(id)); err != nil {
				return fmt.Errorf("failed to acknowledge alarm: %v", err)
			}

			fmt.Printf("Alarm %d acknowledged\n", id)
			return nil
		},
	}
}

func newAlarmClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [alarm_id]",
		Short: "Clear an alarm (cascades when it is a root cause)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid alarm ID: %v", err)
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.ClearAlarm(uint(id)); err != nil {
				return fmt.Errorf("failed to clear alarm: %v", err)
			}

			fmt.Printf("Alarm %d cleared\n", id)
			return nil
		},
	}
}

func newRecorrelateCommand() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "recorrelate",
		Short: "Reset and replay correlation for a tenant's open alarms",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			count, err := c.Recorrelate(tenantID)
			if err != nil {
				return fmt.Errorf("recorrelation failed: %v", err)
			}

			fmt.Printf("Recorrelated %d alarms\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Target tenant (admin only; defaults to your own)")
	return cmd
}
