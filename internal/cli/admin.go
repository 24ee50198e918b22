package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage daemon state (controller, gating, importance, directory)",
	}
	cmd.AddCommand(
		newAdminControllerCmd(),
		newAdminGatingCmd(),
		newAdminImportanceCmd(),
		newAdminDirectoryCmd(),
	)
	return cmd
}

func newAdminControllerCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "controller <up|down>",
		Short:     "Bring the ranging controller up or down",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "up" && args[0] != "down" {
				return fmt.Errorf("argument must be up or down, got %q", args[0])
			}
			_, err := client.Put("/api/v1/admin/controller", map[string]bool{"available": args[0] == "up"})
			if err != nil {
				return err
			}
			fmt.Printf("controller %s\n", args[0])
			return nil
		},
	}
}

func newAdminGatingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gating <name> <satisfied|unsatisfied>",
		Short: "Flip one availability gating condition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[1] != "satisfied" && args[1] != "unsatisfied" {
				return fmt.Errorf("state must be satisfied or unsatisfied, got %q", args[1])
			}
			_, err := client.Put("/api/v1/admin/gating/"+args[0],
				map[string]bool{"satisfied": args[1] == "satisfied"})
			if err != nil {
				return err
			}
			fmt.Printf("gating condition %s %s\n", args[0], args[1])
			return nil
		},
	}
}

func newAdminImportanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "importance <uid> <foreground|background>",
		Short: "Record a principal's process importance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("invalid uid %q: %w", args[0], err)
			}
			_, err := client.Put("/api/v1/admin/importance/"+args[0],
				map[string]string{"importance": args[1]})
			if err != nil {
				return err
			}
			fmt.Printf("uid %s marked %s\n", args[0], args[1])
			return nil
		},
	}
}

func newAdminDirectoryCmd() *cobra.Command {
	dir := &cobra.Command{
		Use:   "directory",
		Short: "Manage peer handle to address mappings",
	}

	set := &cobra.Command{
		Use:   "set <uid> <handle> <addr>",
		Short: "Map a peer handle to an address for a principal",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := client.Put(
				fmt.Sprintf("/api/v1/admin/directory/%s/%s", args[0], args[1]),
				map[string]string{"addr": args[2]})
			if err != nil {
				return err
			}
			fmt.Printf("handle %s -> %s for uid %s\n", args[1], args[2], args[0])
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <uid> <handle>",
		Short: "Remove a peer handle mapping",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := client.Delete(
				fmt.Sprintf("/api/v1/admin/directory/%s/%s", args[0], args[1]), nil)
			if err != nil {
				return err
			}
			fmt.Printf("handle %s removed for uid %s\n", args[1], args[0])
			return nil
		},
	}

	dir.AddCommand(set, del)
	return dir
}
