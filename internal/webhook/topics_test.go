package webhook

import "testing"

func TestNormalizeTopic(t *testing.T) {
	cases := map[string]string{
		"app/uninstalled":   "app_uninstalled",
		"APP/Uninstalled":   "app_uninstalled",
		"app.scopes-update": "app_scopes_update",
		" orders/paid ":     "orders_paid",
		"weird//topic":      "weird_topic",
	}
	for in, want := range cases {
		if got := NormalizeTopic(in); got != want {
			t.Fatalf("NormalizeTopic(%q) = %q, want %q", in, got, want)
		}
	}
}
