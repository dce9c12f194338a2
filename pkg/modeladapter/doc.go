// Package modeladapter defines the contract between the turn pipeline and the
// upstream model providers.
//
// It contains:
//   - [Sender], the single polymorphic "send messages, get a normalized reply" interface
//   - [Request], [Params] and [Response], the provider-agnostic request and reply shapes
//   - the embeddable [ModelAdapter] base struct with HTTP helpers, auth and custom headers
//   - [ProviderError], the uniform transport/non-2xx failure
//   - [github.com/germanamz/assistant/pkg/modeladapter/usage]: thread-safe per-model token usage tracker
//
// This package contains no provider-specific code; concrete adapters live in
// the packages under pkg/providers.
package modeladapter
