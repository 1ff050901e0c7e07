package secrets

import "os"

// Conventional environment names for the secrets TestForge consumes.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvSlackWebhook = "SLACK_WEBHOOK_URL"
)

// EnvLoader returns a Loader that reads the specified environment variables.
// Missing variables are silently omitted from the result map.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

// DefaultEnvLoader reads the full set of secrets TestForge knows about.
func DefaultEnvLoader() Loader {
	return EnvLoader(EnvOpenAIKey, EnvAnthropicKey, EnvSlackWebhook)
}
