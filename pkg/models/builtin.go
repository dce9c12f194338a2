package models

// Builtin returns the default model table.
func Builtin() *Catalog {
	c, err := NewCatalog(builtin...)
	if err != nil {
		panic(err)
	}
	return c
}

var builtin = []Descriptor{
	{ID: "llama-3.3-70b-instruct", Provider: Workers, Upstream: "@cf/meta/llama-3.3-70b-instruct-fp8-fast", Types: []Type{Chat}, Cost: Free},
	{ID: "hermes-2-pro-mistral-7b", Provider: Workers, Upstream: "@hf/nousresearch/hermes-2-pro-mistral-7b", SupportsTools: true, Types: []Type{Chat}, Cost: Free},
	{ID: "llama-3.2-3b-instruct", Provider: Workers, Upstream: "@cf/meta/llama-3.2-3b-instruct", Types: []Type{Chat}, Cost: Free},
	{ID: "deepseek-coder-6.7b", Provider: Workers, Upstream: "@hf/thebloke/deepseek-coder-6.7b-instruct-awq", Types: []Type{Coding}, Cost: Free},
	{ID: "flux", Aliases: []string{"flux-1-schnell"}, Provider: Workers, Upstream: "@cf/black-forest-labs/flux-1-schnell", Types: []Type{Image}, Cost: Free},
	{ID: "whisper", Provider: Workers, Upstream: "@cf/openai/whisper", Types: []Type{Speech}, Media: []Media{MediaAudio}, Cost: Free},
	{ID: "llava", Provider: Workers, Upstream: "@cf/llava-hf/llava-1.5-7b-hf", Types: []Type{Vision}, Media: []Media{MediaImage}, Cost: Free},

	{ID: "claude-3.5-haiku", Provider: Anthropic, Upstream: "claude-3-5-haiku-latest", SupportsTools: true, Types: []Type{Chat, Coding}, Cost: Low},
	{ID: "claude-3.5-sonnet", Aliases: []string{"claude"}, Provider: Anthropic, Upstream: "claude-3-5-sonnet-latest", SupportsTools: true, Types: []Type{Chat, Coding, Creative}, Cost: Medium},
	{ID: "claude-3-opus", Provider: Anthropic, Upstream: "claude-3-opus-latest", SupportsTools: true, Types: []Type{Chat, Creative}, Cost: High},

	{ID: "grok", Provider: Grok, Upstream: "grok-beta", SupportsTools: true, Types: []Type{Chat, Creative}, Cost: Medium},

	{ID: "gpt-4o-mini", Provider: OpenAI, Upstream: "gpt-4o-mini", SupportsTools: true, Types: []Type{Chat, Coding, Vision}, Media: []Media{MediaImage}, Cost: Low},
	{ID: "gpt-4o", Provider: OpenAI, Upstream: "gpt-4o", SupportsTools: true, Types: []Type{Chat, Coding, Creative, Vision}, Media: []Media{MediaImage}, Cost: High},

	{ID: "mistral-small", Provider: Mistral, Upstream: "mistral-small-latest", SupportsTools: true, Types: []Type{Chat}, Cost: Low},
	{ID: "codestral", Provider: Mistral, Upstream: "codestral-latest", Types: []Type{Coding}, Cost: Low},
	{ID: "mistral-large", Provider: Mistral, Upstream: "mistral-large-latest", SupportsTools: true, Types: []Type{Chat, Creative}, Cost: Medium},
	{ID: "pixtral-large", Provider: Mistral, Upstream: "pixtral-large-latest", Types: []Type{Vision}, Media: []Media{MediaImage}, Cost: Medium},

	{ID: "llama-3.1-sonar-small-128k-online", Aliases: []string{"sonar-small"}, Provider: Perplexity, Upstream: "llama-3.1-sonar-small-128k-online", Types: []Type{Search}, Cost: Low},
	{ID: "llama-3.1-sonar-large-128k-online", Aliases: []string{"sonar-large"}, Provider: Perplexity, Upstream: "llama-3.1-sonar-large-128k-online", Types: []Type{Search}, Cost: Medium},

	{ID: "gemini-1.5-flash", Provider: Google, Upstream: "gemini-1.5-flash", SupportsTools: true, Types: []Type{Chat, Vision}, Media: []Media{MediaImage, MediaAudio}, Cost: Low},
	{ID: "gemini-1.5-pro", Provider: Google, Upstream: "gemini-1.5-pro", SupportsTools: true, Types: []Type{Chat, Coding, Creative, Vision}, Media: []Media{MediaImage, MediaAudio}, Cost: Medium},

	{ID: "nova-micro", Provider: Bedrock, Upstream: "amazon.nova-micro-v1:0", Types: []Type{Chat}, Cost: Low},
	{ID: "nova-lite", Provider: Bedrock, Upstream: "amazon.nova-lite-v1:0", Types: []Type{Chat}, Cost: Low},
	{ID: "nova-pro", Provider: Bedrock, Upstream: "amazon.nova-pro-v1:0", Types: []Type{Chat, Creative}, Cost: Medium},

	{ID: "llama-3-70b-instruct", Provider: Replicate, Upstream: "meta/meta-llama-3-70b-instruct", Types: []Type{Chat}, Cost: Low},

	{ID: "doubao-pro", Provider: Ark, Upstream: "doubao-1-5-pro-32k-250115", Types: []Type{Chat, Coding}, Cost: Low},
}
