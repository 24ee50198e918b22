package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <uid>...",
		Short: "Cancel queued rangings attributed to the given principals",
		Long: `Cancel removes the given principals from every queued ranging.
A ranging whose attribution empties is cancelled; rangings attributed to
other principals as well stay queued, charged only to the survivors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uids := make([]int64, 0, len(args))
			for _, arg := range args {
				uid, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid uid %q: %w", arg, err)
				}
				uids = append(uids, uid)
			}

			resp, err := client.Delete("/api/v1/rangings", map[string]any{"attribution": uids})
			if err != nil {
				return err
			}

			var data struct {
				Cancelled int `json:"cancelled"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Printf("cancelled %d ranging(s)\n", data.Cancelled)
			return nil
		},
	}
	return cmd
}
