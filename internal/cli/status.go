package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/me/rangerd/pkg/model"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health, availability, and controller capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			healthResp, err := client.Get("/api/v1/health")
			if err != nil {
				return err
			}
			var health struct {
				Status     string `json:"status"`
				Version    string `json:"version"`
				Uptime     string `json:"uptime"`
				Available  bool   `json:"available"`
				QueueDepth int    `json:"queue_depth"`
			}
			if err := json.Unmarshal(healthResp.Data, &health); err != nil {
				return fmt.Errorf("parse health: %w", err)
			}

			availResp, err := client.Get("/api/v1/availability")
			if err != nil {
				return err
			}
			var avail struct {
				Available        bool            `json:"available"`
				GatingConditions map[string]bool `json:"gating_conditions"`
			}
			if err := json.Unmarshal(availResp.Data, &avail); err != nil {
				return fmt.Errorf("parse availability: %w", err)
			}

			capResp, err := client.Get("/api/v1/capabilities")
			if err != nil {
				return err
			}
			var caps model.Capabilities
			if err := json.Unmarshal(capResp.Data, &caps); err != nil {
				return fmt.Errorf("parse capabilities: %w", err)
			}

			fmt.Printf("Daemon:       %s (version %s, up %s)\n", health.Status, health.Version, health.Uptime)
			fmt.Printf("Available:    %v\n", health.Available)
			fmt.Printf("Queue depth:  %d\n", health.QueueDepth)

			if len(avail.GatingConditions) > 0 {
				fmt.Println("Gating conditions:")
				names := make([]string, 0, len(avail.GatingConditions))
				for name := range avail.GatingConditions {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					state := "satisfied"
					if !avail.GatingConditions[name] {
						state = "NOT satisfied"
					}
					fmt.Printf("  %-24s %s\n", name, state)
				}
			}

			fmt.Println("Capabilities:")
			fmt.Printf("  one-sided:      %v\n", caps.OneSidedSupported)
			fmt.Printf("  two-sided:      %v\n", caps.TwoSidedSupported)
			fmt.Printf("  responder:      %v\n", caps.ResponderSupported)
			fmt.Printf("  secure ranging: %v\n", caps.SecureRangingSupported)
			fmt.Printf("  max peers:      %d\n", caps.MaxPeers)
			return nil
		},
	}
	return cmd
}
