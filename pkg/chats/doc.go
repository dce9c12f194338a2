// Package chats provides the provider-agnostic data model of a conversation.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/assistant/pkg/chats/role]: conversation roles (system, user, assistant, tool)
//   - [github.com/germanamz/assistant/pkg/chats/content]: typed content parts (text, image, audio, tool call/result)
//   - [github.com/germanamz/assistant/pkg/chats/message]: messages with citations, mode and log id, plus their JSON form
//   - [github.com/germanamz/assistant/pkg/chats/chat]: the mutable working set of one turn
//
// No provider or storage code is included; chats is the foundation layer
// adapters, stores and the turn pipeline build on.
package chats
