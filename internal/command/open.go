package command

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"chatsync/internal/chat"
)

// NewOpenCmd creates the open command.
func NewOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open [who]",
		Short: "Open a conversation and chat interactively",
		Long: "Open a conversation, print it, and keep it live. Each line typed is sent.\n" +
			"Type /quit or press Ctrl-D to leave. Without an argument the first person is opened.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetBool("group")
			out := cmd.OutOrStdout()

			var mu sync.Mutex
			render := func(snap chat.Snapshot) {
				mu.Lock()
				defer mu.Unlock()
				if snap.Active && snap.State != chat.StateLoading {
					renderThread(out, snap, time.Local)
				}
			}

			session, err := startSession(cmd, chat.WithObserver(render))
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer session.Close()

			if len(args) == 1 {
				thread, err := resolveThread(session.Snapshot(), args[0], group)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				// a failed load is shown in the thread; only a failed join aborts
				if err := session.Select(cmd.Context(), thread.ID, thread.IsGroup()); errors.Is(err, chat.ErrJoinFailed) {
					return writeCommandError(cmd, err)
				}
			}
			if !session.Snapshot().Active {
				return writeCommandError(cmd, chat.ErrNoThread)
			}

			return chatLoop(cmd.Context(), session, cmd.InOrStdin())
		},
	}
	cmd.Flags().BoolP("group", "g", false, "open a group instead of a person")
	return cmd
}

// chatLoop sends every non-empty input line until EOF or /quit. Send
// failures are already reported through the notifier.
func chatLoop(ctx context.Context, session *chat.Session, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reload":
			_ = session.Reload(ctx)
			continue
		}
		err := session.Send(ctx, line)
		if errors.Is(err, chat.ErrClosed) || errors.Is(err, chat.ErrUnauthenticated) {
			return err
		}
	}
	return scanner.Err()
}
