// Package agent runs session-aware LLM turns with a bounded tool loop.
//
// Invariants:
// - A turn does nothing until its first event is pulled.
// - The user message is appended to the session before the first model round.
// - Finished model and tool events are appended in the order they are yielded; partial events never are.
// - Tool failures are handed back to the model; provider, session and toolset failures end the turn with a *TurnError.
//
// Usage:
//
//	runner, _ := agent.NewRunner(agent.Config{
//		AppName:  "GeminiCLI",
//		Agent:    &agent.Agent{Name: "GeminiAgent", Model: "gemini-2.5-flash"},
//		Sessions: sessions,
//		Provider: agent.NewGeminiProvider(apiKey, ""),
//	})
//	events := runner.Run(ctx, agent.RunRequest{
//		UserID:     "user-1",
//		SessionID:  "session-1",
//		NewMessage: session.NewUserContent("hello"),
//	})
//	defer events.Close()
//	for events.Next() {
//		fmt.Print(events.Event().Text())
//	}
package agent
