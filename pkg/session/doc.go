// Package session keeps conversation history in memory, keyed by
// application, user and session identifiers.
//
// Invariants:
// - Keys are validated before a session is created.
// - Events are appended in the order they finish; partial events are skipped.
// - Nothing is persisted; sessions end with the process.
//
// Usage:
//
//	store := session.NewInMemoryService()
//	sess, _ := store.Create(ctx, session.Key{AppName: "GeminiCLI", UserID: "user-1", SessionID: "session-1"})
//	_ = store.AppendEvent(ctx, sess, session.NewEvent("inv-1", session.AuthorUser, session.NewUserContent("hello")))
package session
