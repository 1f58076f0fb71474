package webhook

import "strings"

// Topics this service reacts to, in normalized form.
const (
	TopicAppUninstalled  = "app_uninstalled"
	TopicAppScopesUpdate = "app_scopes_update"
)

// NormalizeTopic converts Shopify topic strings (often like "app/uninstalled")
// into a stable internal form.
// Examples:
// - "app/uninstalled" -> "app_uninstalled"
// - "app.scopes-update" -> "app_scopes_update"
func NormalizeTopic(topic string) string {
	t := strings.TrimSpace(strings.ToLower(topic))
	t = strings.ReplaceAll(t, "/", "_")
	t = strings.ReplaceAll(t, ".", "_")
	t = strings.ReplaceAll(t, "-", "_")
	for strings.Contains(t, "__") {
		t = strings.ReplaceAll(t, "__", "_")
	}
	return strings.Trim(t, "_")
}
