package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hueshift/hueshift/pkg/api"
	"github.com/hueshift/hueshift/pkg/client"
	"github.com/hueshift/hueshift/pkg/types"
)

var deployCmd = &cobra.Command{
	Use:   "deploy VERSION",
	Short: "Deploy a version to the standby slot and switch traffic",
	Long: `Deploy VERSION to the standby slot, verify its health, switch traffic
to it, and commit. The command blocks until the rollout reaches a
terminal state and reports the outcome.

Examples:
  hueshift deploy v2.1.0
  hueshift deploy v2.1.0 --slot green --replicas 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		slot, _ := cmd.Flags().GetString("slot")
		replicas, _ := cmd.Flags().GetInt("replicas")

		c := client.NewClient(server)
		fmt.Printf("Deploying %s...\n", args[0])

		resp, err := c.Deploy(cmd.Context(), api.DeployRequest{
			Version:    args[0],
			TargetSlot: slot,
			Replicas:   replicas,
		})
		if err != nil {
			return err
		}

		record := resp.Record
		switch record.Outcome {
		case types.OutcomeCommitted:
			fmt.Printf("✓ %s committed on slot %s (took %v)\n",
				record.Version, record.ToSlot,
				record.EndedAt.Sub(record.StartedAt).Round(time.Second))
			return nil
		case types.OutcomeRolledBack:
			return fmt.Errorf("rollout rolled back: %s", record.Reason)
		default:
			return fmt.Errorf("rollout failed: %s", record.Reason)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show slot states",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")

		resp, err := client.NewClient(server).Slots(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("App: %s\n\n", resp.App)
		fmt.Printf("%-8s %-10s %-12s %-12s %s\n", "SLOT", "ACTIVITY", "VERSION", "HEALTH", "ENDPOINT")
		for _, s := range resp.Slots {
			version := s.CurrentVersion
			if version == "" {
				version = "-"
			}
			fmt.Printf("%-8s %-10s %-12s %-12s %s\n",
				s.ID, s.Activity, version, s.Health, s.Endpoint)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show rollout history",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")

		resp, err := client.NewClient(server).Rollouts(cmd.Context())
		if err != nil {
			return err
		}

		if len(resp.Rollouts) == 0 {
			fmt.Println("No rollouts recorded.")
			return nil
		}

		fmt.Printf("%-4s %-12s %-8s %-12s %-20s %s\n", "SEQ", "VERSION", "SLOT", "OUTCOME", "STARTED", "REASON")
		for _, r := range resp.Rollouts {
			reason := r.Reason
			if reason == "" {
				reason = "-"
			}
			fmt.Printf("%-4d %-12s %-8s %-12s %-20s %s\n",
				r.Seq, r.Version, r.ToSlot, r.Outcome,
				r.StartedAt.Format("2006-01-02 15:04:05"), reason)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{deployCmd, statusCmd, historyCmd} {
		cmd.Flags().String("server", "http://127.0.0.1:7430", "HueShift server address")
	}
	deployCmd.Flags().String("slot", "", "Target slot (defaults to the current standby)")
	deployCmd.Flags().Int("replicas", 0, "Replica count (defaults to server config)")
}
