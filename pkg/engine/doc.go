// Package engine is the composition root that assembles the assistant's
// components from configuration and exposes them through a frontend-agnostic
// API. Frontends (HTTP server, terminal chat, MCP server) interact with
// Engine and Session types, observe turn progress through an EventBus, and
// never wire lower-level packages themselves.
package engine
