package agent

// GeminiBaseURL is Google's OpenAI-compatible Gemini endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// NewGeminiProvider creates a provider for Google Gemini. Requests go through
// the OpenAI-compatible endpoint, so it shares the OpenAI streaming path.
func NewGeminiProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	p := NewOpenAIProvider(apiKey, baseURL)
	p.name = "gemini"
	return p
}
