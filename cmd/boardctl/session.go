package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"sparkboard/internal/apperror"
	"sparkboard/internal/board"
	"sparkboard/internal/client"
	"sparkboard/internal/models"

	"github.com/spf13/cobra"
)

const autosaveInterval = 5 * time.Second

func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session, join it as host and stream events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stream(cmd.Context(), func(ctx context.Context, c *client.Client, _ string) error {
				created, err := c.CreateSession(ctx)
				if err != nil {
					return err
				}
				success("Session %s created", created.SessionID)
				info("Invite link: %s", created.InviteLink)
				return nil
			})
		},
	}
	return cmd
}

func joinCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "join <session-id>",
		Short: "Join a session and stream events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return stream(cmd.Context(), func(ctx context.Context, c *client.Client, defaultName string) error {
				if name == "" {
					name = defaultName
				}
				return c.JoinSession(ctx, args[0], name)
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (default $SPARKBOARD_USER)")

	return cmd
}

// stream wires the client to the local board, runs start, then prints
// session events until interrupted or the connection is given up.
func stream(parent context.Context, start func(ctx context.Context, c *client.Client, userName string) error) error {
	if parent == nil {
		parent = context.Background()
	}

	c, cfg, logger, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	store := board.NewFileStore(cfg.BoardFile)
	b, err := board.New(board.Config{Store: store, Session: c, Logger: logger})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	c.SetHandlers(b.Handlers(client.Handlers{
		OnSessionJoined: func(sessionID string, user models.User, elements models.Elements) {
			success("Joined %s as %s (%s)", sessionID, user.Name, user.Color)
			info("%d elements on the board", len(elements))
		},
		OnElementsUpdate: func(elements models.Elements, current models.Element) {
			if current != nil {
				return
			}
			info("board updated: %d elements", len(elements))
		},
		OnUserJoined: func(user models.User) {
			info("→ %s joined", user.Name)
		},
		OnUserLeft: func(userID string) {
			info("← %s left", userID)
		},
		OnCursorMove: func(userID string, cursor models.Point) {
			info("  %s at (%.0f, %.0f)", userID, cursor.X, cursor.Y)
		},
		OnError: func(err error) {
			errorMsg("%v", err)
			if errors.Is(err, apperror.ErrReconnectExhausted) || errors.Is(err, apperror.ErrNotFound) {
				cancel(err)
			}
		},
	}))

	b.BeginSession()
	if err := start(ctx, c, cfg.UserName); err != nil {
		_ = b.EndSession()
		return err
	}

	go func() {
		_ = b.Autosave(ctx, autosaveInterval)
	}()
	go func() {
		err := store.Watch(ctx, logger, func(snap board.Snapshot) {
			if b.ExternalChange(snap) {
				info("local board changed on disk: %d elements", len(snap.Elements))
			}
		})
		if err != nil {
			warn("not watching %s: %v", store.Path(), err)
		}
	}()

	<-ctx.Done()

	if err := c.LeaveSession(); err != nil {
		warn("leave failed: %v", err)
	}
	if err := b.EndSession(); err != nil {
		warn("could not restore local board: %v", err)
	} else {
		success("Local board restored to %s", store.Path())
	}

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}
