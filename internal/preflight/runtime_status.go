package preflight

import (
	"strings"

	"reelsmith/internal/config"
)

// CredentialStatus reports which service credentials are configured without
// contacting the services.
func CredentialStatus(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	client := ""
	if strings.TrimSpace(cfg.Publish.ClientID) != "" && strings.TrimSpace(cfg.Publish.ClientSecret) != "" {
		client = cfg.Publish.ClientID
	}
	return []Result{
		presence("OpenAI key", cfg.LLM.APIKey, "llm.api_key or OPENAI_API_KEY"),
		presence("Pexels key", cfg.Footage.APIKey, "footage.api_key or PEXELS_API_KEY"),
		presence("YouTube client", client, "publish.client_id/client_secret or GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET"),
		presence("YouTube refresh token", cfg.Publish.RefreshToken, "publish.refresh_token or GOOGLE_REFRESH_TOKEN"),
		notificationStatus(cfg),
	}
}

func presence(name, value, hint string) Result {
	if strings.TrimSpace(value) == "" {
		return Result{Name: name, Detail: "Missing (" + hint + ")"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured"}
}

func notificationStatus(cfg *config.Config) Result {
	const name = "Notifications"
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Notifications.NtfyTopic}
}
