package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/me/rangerd/pkg/model"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		flagLimit  int
		flagOffset int
		flagStatus string
	)

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List retired ranging sessions, or show one in full",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showSession(args[0])
			}

			q := url.Values{}
			q.Set("limit", strconv.Itoa(flagLimit))
			q.Set("offset", strconv.Itoa(flagOffset))
			if flagStatus != "" {
				q.Set("status", flagStatus)
			}
			resp, err := client.Get("/api/v1/sessions/?" + q.Encode())
			if err != nil {
				return err
			}

			var sessions []model.Session
			if err := json.Unmarshal(resp.Data, &sessions); err != nil {
				return fmt.Errorf("parse sessions: %w", err)
			}

			fmt.Printf("%-36s  %-20s  %-20s  %-8s  %s\n", "SESSION", "CALLER", "STATUS", "TARGETS", "COMPLETED")
			for _, sess := range sessions {
				fmt.Printf("%-36s  %-20s  %-20s  %-8d  %s\n",
					sess.ID, sess.Caller, sess.Status, len(sess.Targets), humanize.Time(sess.CompletedAt))
			}
			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n%d of %s sessions shown, use --offset %d for more\n",
					len(sessions), humanize.Comma(int64(resp.Pagination.Total)), flagOffset+len(sessions))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&flagLimit, "limit", 20, "Maximum sessions to list")
	cmd.Flags().IntVar(&flagOffset, "offset", 0, "Sessions to skip")
	cmd.Flags().StringVar(&flagStatus, "status", "", "Filter by overall status")

	return cmd
}

func showSession(id string) error {
	resp, err := client.Get("/api/v1/sessions/" + id)
	if err != nil {
		return err
	}

	var sess model.Session
	if err := json.Unmarshal(resp.Data, &sess); err != nil {
		return fmt.Errorf("parse session: %w", err)
	}

	fmt.Printf("Session:     %s\n", sess.ID)
	if sess.OperationID != 0 {
		fmt.Printf("Operation:   %d\n", sess.OperationID)
	}
	fmt.Printf("Caller:      %s (uid %d)\n", sess.Caller, sess.CallerUID)
	fmt.Printf("Attribution: %s\n", sess.Attribution.String())
	fmt.Printf("Status:      %s\n", sess.Status)
	fmt.Printf("Created:     %s (%s)\n", sess.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(sess.CreatedAt))
	fmt.Printf("Completed:   %s (%s)\n", sess.CompletedAt.Format("2006-01-02 15:04:05"), humanize.Time(sess.CompletedAt))
	if len(sess.Outcomes) > 0 {
		fmt.Println()
		printOutcomes(sess.Outcomes)
	}
	return nil
}
