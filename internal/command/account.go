package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatsync/internal/platform"
)

// NewSignupCmd creates the signup command.
func NewSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup <name>",
		Short: "Create an account with --email and --password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := clientConfig(cmd)
			if cfg.Email == "" || cfg.Password == "" {
				return writeCommandError(cmd, fmt.Errorf("--email and --password are required"))
			}
			client := platform.New(cfg)
			user, err := client.SignUp(cmd.Context(), args[0], cfg.Email, cfg.Password)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
	return cmd
}

// NewGroupCmd creates the group command.
func NewGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}
	cmd.AddCommand(newGroupCreateCmd())
	return cmd
}

func newGroupCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group and join it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			client, err := signIn(cmd.Context(), cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			group, err := client.CreateGroup(cmd.Context(), args[0], description)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created #%s (%s)\n", group.Name, group.ID)
			return nil
		},
	}
	cmd.Flags().StringP("description", "d", "", "group description")
	return cmd
}
