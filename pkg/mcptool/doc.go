// Package mcptool exposes the tools of an external MCP server as a tools.Toolset.
//
// Invariants:
// - One connection per Toolset; it is opened by Connect or lazily by Tools.
// - A failed listing drops the connection so the next turn reconnects.
// - Close is final and safe to call more than once.
package mcptool
