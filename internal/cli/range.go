package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/me/rangerd/pkg/model"
	"github.com/spf13/cobra"
)

func newRangeCmd() *cobra.Command {
	var (
		flagCaller      string
		flagUID         int64
		flagBurst       int
		flagAttribution []int64
	)

	cmd := &cobra.Command{
		Use:   "range <target>...",
		Short: "Range against one or more peers and wait for results",
		Long: `Range submits a ranging request and streams its outcome.

Each target is either a link-layer address (aa:bb:cc:dd:ee:01) or a peer
handle reference (handle:7). Handle targets are resolved by the daemon
under the calling principal's identity.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := make([]model.Target, 0, len(args))
			for _, arg := range args {
				if h, ok := strings.CutPrefix(arg, "handle:"); ok {
					id, err := strconv.ParseInt(h, 10, 32)
					if err != nil {
						return fmt.Errorf("invalid handle %q: %w", arg, err)
					}
					targets = append(targets, model.HandleTarget(model.PeerHandle(id)))
					continue
				}
				targets = append(targets, model.AddrTarget(arg))
			}

			body := map[string]any{
				"caller":     flagCaller,
				"caller_uid": flagUID,
				"targets":    targets,
			}
			if flagBurst > 0 {
				body["burst_size"] = flagBurst
			}
			if len(flagAttribution) > 0 {
				body["attribution"] = flagAttribution
			}

			return client.Stream("/api/v1/rangings", body, printRangeEvent)
		},
	}

	cmd.Flags().StringVar(&flagCaller, "caller", "rangectl", "Caller package name")
	cmd.Flags().Int64Var(&flagUID, "uid", int64(os.Getuid()), "Calling principal uid")
	cmd.Flags().IntVar(&flagBurst, "burst", 0, "Burst size (0 for the daemon default)")
	cmd.Flags().Int64SliceVar(&flagAttribution, "attribution", nil, "Principals charged for this request")

	return cmd
}

func printRangeEvent(ev Event) error {
	switch ev.Name {
	case "accepted":
		var data struct {
			SessionID string `json:"session_id"`
		}
		json.Unmarshal(ev.Data, &data)
		fmt.Printf("session %s accepted, waiting for results...\n", data.SessionID)

	case "results":
		var data struct {
			Outcomes []model.Outcome `json:"outcomes"`
		}
		json.Unmarshal(ev.Data, &data)
		printOutcomes(data.Outcomes)

	case "failure":
		var data struct {
			Reason model.ReasonCode `json:"reason"`
		}
		json.Unmarshal(ev.Data, &data)
		return fmt.Errorf("ranging failed: %s", data.Reason)

	case "cancelled":
		return fmt.Errorf("ranging cancelled")
	}
	return nil
}

func printOutcomes(outcomes []model.Outcome) {
	fmt.Printf("%-20s  %-8s  %-12s  %-6s  %s\n", "TARGET", "STATUS", "DISTANCE", "RSSI", "BURST")
	for _, o := range outcomes {
		target := o.Addr
		if target == "" {
			target = fmt.Sprintf("handle:%d", o.Handle)
		}
		if o.Status != model.OutcomeSuccess {
			fmt.Printf("%-20s  %-8s  %-12s  %-6s  %s\n", target, o.Status, "-", "-", "-")
			continue
		}
		fmt.Printf("%-20s  %-8s  %-12s  %-6d  %d/%d\n",
			target, o.Status, formatDistance(o.DistanceMm), o.RSSI, o.NumSuccessful, o.NumAttempted)
	}
}

// formatDistance renders millimeters in a human unit.
func formatDistance(mm int) string {
	if mm < 1000 {
		return fmt.Sprintf("%d mm", mm)
	}
	return fmt.Sprintf("%.2f m", float64(mm)/1000)
}
