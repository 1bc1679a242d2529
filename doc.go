/*
Package minutes is a chatbot core that walks a user through recording a
meeting protocol: seven metadata answers, a dictated list of key questions, a
dictated list of decisions, and a rendered document at the end.

# Architecture

The workflow is a fixed state machine (pkg/domain) driven by the conversation
engine (pkg/conversation). Sessions live behind the ports.SessionStore
interface with memory, file, SQLite and Redis backends, and every read-modify-write
of a user's session runs inside the session manager's per-user critical section
(pkg/session). Speech recognition, list formatting and document rendering are
collaborators behind ports: whisper.cpp, Gemini and DOCX in production,
fakes in tests. When the formatter is unavailable the text normalizer
(pkg/normalizer) splits and numbers the transcript on its own.

Inbound events go through the bot dispatcher (pkg/bot), whose middleware
chain handles authorization, panics and logging before the engine is reached.
Transports are thin: a JSON API (pkg/adapters/http), a local console
(pkg/adapters/console) and an MCP tool server (pkg/adapters/mcp).

# Usage

	cfg, err := config.Load("minutes.yaml")
	if err != nil {
		log.Fatal(err)
	}
	app, err := minutes.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	msgs, err := app.Bot.Handle(ctx, bot.Event{UserID: 42, Kind: bot.EventCommand, Command: bot.CommandProtocol})

The cmd/minutes binary wraps the same assembly with serve, console and mcp
subcommands.
*/
package minutes
