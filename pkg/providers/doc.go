// Package providers groups the upstream model adapters. Each sub-package
// implements [github.com/germanamz/assistant/pkg/modeladapter.Sender] for one
// provider:
//   - anthropic: Messages API, directly or through the Cloudflare AI gateway
//   - workers: Cloudflare Workers AI through the AI gateway
//   - openai: OpenAI and the OpenAI-compatible Grok, Mistral and Perplexity APIs
//   - gemini: Google Gemini
//   - bedrock: AWS Bedrock Converse
//   - replicate: Replicate predictions, also used by the media tools
//   - ark: Volcengine Ark
//
// The engine registers configured adapters with the dispatcher; nothing here
// selects models.
package providers
