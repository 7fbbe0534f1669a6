// Package command is the terminal front end for chatsync
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chatsync/internal/chat"
	"chatsync/internal/config"
	"chatsync/internal/platform"
)

const AppName = "chat"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Terminal client for chatsync",
		Long:          "Direct and group chat against a chatsync platform server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("api", "", "platform API base URL (default $CHAT_API_URL)")
	cmd.PersistentFlags().String("email", "", "account email (default $CHAT_EMAIL)")
	cmd.PersistentFlags().String("password", "", "account password (default $CHAT_PASSWORD)")
	cmd.PersistentFlags().Bool("verbose", false, "log client internals to stderr")

	cmd.AddCommand(
		NewThreadsCmd(),
		NewOpenCmd(),
		NewSendCmd(),
		NewSignupCmd(),
		NewGroupCmd(),
	)

	return cmd
}

func Execute(ctx context.Context) error {
	return NewRootCmd(Version).ExecuteContext(ctx)
}

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
	if errors.Is(err, chat.ErrUnauthenticated) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: set CHAT_EMAIL and CHAT_PASSWORD, or run: chat signup")
	}
	return err
}

// clientConfig merges flags over the environment
func clientConfig(cmd *cobra.Command) *config.Client {
	cfg := config.LoadClient()
	if v, _ := cmd.Flags().GetString("api"); v != "" {
		cfg.APIURL = strings.TrimRight(v, "/")
	}
	if v, _ := cmd.Flags().GetString("email"); v != "" {
		cfg.Email = v
	}
	if v, _ := cmd.Flags().GetString("password"); v != "" {
		cfg.Password = v
	}
	return cfg
}

func logger(cmd *cobra.Command) *log.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// signIn returns a platform client holding a fresh access token
func signIn(ctx context.Context, cmd *cobra.Command) (*platform.Client, error) {
	cfg := clientConfig(cmd)
	if cfg.Email == "" || cfg.Password == "" {
		return nil, chat.ErrUnauthenticated
	}
	client := platform.New(cfg)
	if _, err := client.SignIn(ctx, cfg.Email, cfg.Password); err != nil {
		return nil, err
	}
	return client, nil
}

// startSession signs in and loads the directory. The default thread is
// selected as a side effect.
func startSession(cmd *cobra.Command, opts ...chat.Option) (*chat.Session, error) {
	ctx := cmd.Context()
	client, err := signIn(ctx, cmd)
	if err != nil {
		return nil, err
	}

	opts = append([]chat.Option{
		chat.WithLogger(logger(cmd)),
		chat.WithNotifier(chat.NotifierFunc(func(n chat.Notice) {
			fmt.Fprintf(cmd.ErrOrStderr(), "! %s\n", noticeText(n))
		})),
	}, opts...)
	session := chat.NewSession(client, client.Feed(), opts...)
	if err := session.Start(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

func noticeText(n chat.Notice) string {
	switch {
	case errors.Is(n.Err, chat.ErrJoinFailed):
		return "could not join the group: " + n.Err.Error()
	case errors.Is(n.Err, chat.ErrSendFailed):
		return "message not sent: " + n.Err.Error()
	case errors.Is(n.Err, chat.ErrFetchFailed):
		return "could not load messages: " + n.Err.Error()
	}
	return n.Err.Error()
}
