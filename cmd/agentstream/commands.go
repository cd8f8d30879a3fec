package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spf13/cobra"

	"github.com/youssefsiam38/agentstream"
	"github.com/youssefsiam38/agentstream/display"
	"github.com/youssefsiam38/agentstream/hooks"
	"github.com/youssefsiam38/agentstream/storage"
	"github.com/youssefsiam38/agentstream/streaming"
	"github.com/youssefsiam38/agentstream/tool/builtin"
)

func newChatCmd(load loader) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat PROMPT...",
		Short: "Send a prompt to the model and print the session's display entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.APIKey == "" {
				return fmt.Errorf("%s is not set", envAPIKey)
			}

			// Interrupts abort the run; the partial turn is still saved.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			logger := newLogger(cfg, cmd.ErrOrStderr())

			store, release, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()

			sessionID, err := resolveSession(ctx, store, session, true)
			if err != nil {
				return err
			}

			workdir, err := filepath.Abs(cfg.Workdir)
			if err != nil {
				return fmt.Errorf("invalid workdir: %w", err)
			}

			registry := hooks.NewRegistry()
			hooks.NewLoggingHooks(logger).Register(registry)

			client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
			agent, err := agentstream.New(agentstream.Config{
				Client:       &client,
				Model:        cfg.Model,
				SystemPrompt: cfg.SystemPrompt,
				Store:        store,
			},
				agentstream.WithLogger(logger),
				agentstream.WithHooks(registry),
				agentstream.WithTools(builtin.All()...),
				agentstream.WithMaxSteps(cfg.MaxSteps),
				agentstream.WithMaxTokens(cfg.MaxTokens),
				agentstream.WithVariables(map[string]any{builtin.WorkdirVariable: workdir}),
			)
			if err != nil {
				return err
			}

			resp, err := agent.Run(ctx, sessionID, strings.Join(args, " "))
			if resp != nil {
				if werr := writeJSONL(cmd.OutOrStdout(), resp.Display); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&session, "session", "default", "session identifier; created on first use")
	return cmd
}

func newReplayCmd(load loader) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Consume a JSON Lines event stream and print its display entries",
		Long: `Replay reads agent events, one JSON object per line, from FILE ("-" for stdin).
Without --session the events are folded into an empty history and nothing is saved.
With --session they are appended to that session and persisted step by step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			events, err := streaming.DecodeEvents(in)
			_ = in.Close()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var entries []display.Event

			if session == "" {
				entries, err = replay(ctx, events, logger)
			} else {
				entries, err = replayInto(ctx, cfg, session, events, logger)
			}
			if entries != nil {
				if werr := writeJSONL(cmd.OutOrStdout(), entries); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "persist the replayed turn into this session")
	return cmd
}

func replay(ctx context.Context, events []streaming.Event, logger *slog.Logger) ([]display.Event, error) {
	res, err := streaming.Consume(ctx, streaming.NewSliceStream(events...), nil, streaming.Config{Logger: logger})
	entries := display.AppendIdle(display.NewProjector(logger).Project(res.Messages))
	return entries, err
}

func replayInto(ctx context.Context, cfg Config, session string, events []streaming.Event, logger *slog.Logger) ([]display.Event, error) {
	store, release, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer release()

	sessionID, err := resolveSession(ctx, store, session, true)
	if err != nil {
		return nil, err
	}

	agent, err := agentstream.New(agentstream.Config{Store: store}, agentstream.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	resp, err := agent.Consume(ctx, sessionID, streaming.NewSliceStream(events...))
	if resp == nil {
		return nil, err
	}
	return resp.Display, err
}

func newHistoryCmd(load loader) *cobra.Command {
	var (
		session string
		raw     bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a stored session as display entries or raw messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			ctx := cmd.Context()

			store, release, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()

			sessionID, err := resolveSession(ctx, store, session, false)
			if errors.Is(err, storage.ErrSessionNotFound) {
				return fmt.Errorf("no session %q", session)
			}
			if err != nil {
				return err
			}

			if raw {
				messages, err := store.GetMessages(ctx, sessionID)
				if err != nil {
					return err
				}
				return writeJSONL(cmd.OutOrStdout(), messages)
			}

			agent, err := agentstream.New(agentstream.Config{Store: store}, agentstream.WithLogger(logger))
			if err != nil {
				return err
			}
			entries, err := agent.Display(ctx, sessionID)
			if err != nil {
				return err
			}
			return writeJSONL(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVar(&session, "session", "default", "session identifier")
	cmd.Flags().BoolVar(&raw, "raw", false, "print stored messages instead of display entries")
	return cmd
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the session and message tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Driver == driverMemory {
				return errors.New("migrate needs database_url or " + envDatabaseURL)
			}

			ctx := cmd.Context()
			exec, conn, err := openExecutor(ctx, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := storage.Migrate(ctx, exec); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
