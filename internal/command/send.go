package command

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <who> <message...>",
		Short: "Send one message and print the conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetBool("group")

			session, err := startSession(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer session.Close()

			thread, err := resolveThread(session.Snapshot(), args[0], group)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := session.Select(cmd.Context(), thread.ID, thread.IsGroup()); err != nil {
				return writeCommandError(cmd, err)
			}
			if err := session.Send(cmd.Context(), strings.Join(args[1:], " ")); err != nil {
				return writeCommandError(cmd, err)
			}

			renderThread(cmd.OutOrStdout(), session.Snapshot(), time.Local)
			return nil
		},
	}
	cmd.Flags().BoolP("group", "g", false, "send to a group instead of a person")
	return cmd
}
