package command

import (
	"github.com/spf13/cobra"
)

// NewThreadsCmd creates the threads command.
func NewThreadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "List people and groups you can chat with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := startSession(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer session.Close()

			renderDirectory(cmd.OutOrStdout(), session.Snapshot())
			return nil
		},
	}
}
