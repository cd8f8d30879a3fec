// Package agentstream turns an agent's event stream into a durable,
// renderable conversation.
//
// A run produces a sequence of events (step boundaries, text and reasoning
// deltas, tool calls and their results, errors and aborts). The streaming
// package folds those events into a message history, persisting the current
// turn after every step. The display package projects any history into the
// ordered entries a UI renders.
//
// # Quick Start
//
//	client := anthropic.NewClient()
//	agent, err := agentstream.New(agentstream.Config{
//	    Client:       &client,
//	    Model:        "claude-sonnet-4-5",
//	    SystemPrompt: "You are a helpful coding assistant",
//	    Store:        storage.NewMemoryStore(),
//	},
//	    agentstream.WithTools(builtin.All()...),
//	    agentstream.WithMaxSteps(8),
//	)
//
//	sessionID, _ := agent.NewSession(ctx, "user-123", nil)
//	response, err := agent.Run(ctx, sessionID, "List the files in this repository")
//	for _, entry := range response.Display {
//	    fmt.Println(entry.Kind, entry.Event)
//	}
//
// # Externally Produced Streams
//
// Any producer can be consumed through Agent.Consume, which applies the same
// persistence and projection as Run:
//
//	pipe := streaming.NewPipe(16)
//	go produce(pipe)
//	response, err := agent.Consume(ctx, sessionID, pipe)
//
// # Persistence
//
// Stores implement storage.Store. SQLStore runs over either driver:
//
//	drv, _ := pgxv5.Open(ctx, databaseURL)
//	store := storage.NewSQLStore(drv.GetExecutor())
//
// Saves are idempotent upserts keyed by message ID, so partially streamed
// turns saved on error or abort are completed in place by later saves.
//
// # Hooks
//
// Register observers on a hooks.Registry and pass it with WithHooks:
//
//	registry := hooks.NewRegistry()
//	hooks.NewLoggingHooks(logger).Register(registry)
//	registry.OnMessageUpdate(func(messages []types.Message) { redraw(messages) })
package agentstream
