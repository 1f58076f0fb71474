package webhook

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"appauth/internal/api"
	"appauth/pkg/config"
	"appauth/pkg/shopify"
)

type Handler struct {
	Cfg   config.Config
	Store api.TokenStore
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Prefer Shopify's topic header; fall back to route param.
	topic := strings.TrimSpace(r.Header.Get("X-Shopify-Topic"))
	if topic == "" {
		topic = chi.URLParam(r, "topic")
	}
	topic = NormalizeTopic(topic)

	req, err := shopify.FromHTTPRequest(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid body")
		return
	}

	verifier := shopify.NewWebhookVerifier(shopify.Credentials{
		ClientID:        h.Cfg.Shopify.APIKey,
		ClientSecret:    h.Cfg.Shopify.APISecret,
		OldClientSecret: h.Cfg.Shopify.OldAPISecret,
	})
	res := verifier.Verify(req)
	if !res.OK {
		res.Response.Write(w)
		return
	}

	switch topic {
	case TopicAppUninstalled:
		// Drop the stored credentials; the platform has already revoked them.
		if err := h.Store.DeleteByShop(r.Context(), res.Shop); err != nil {
			log.Printf("webhook %s: deleting credentials for shop %s failed: %v", topic, res.Shop, err)
			// Still ack: the delete retries on the next delivery.
		}
	case TopicAppScopesUpdate:
		if h.Cfg.AppEnv != "prod" {
			log.Printf("webhook %s: shop %s granted new scopes", topic, res.Shop)
		}
	default:
		// Unknown topics are acked so the platform stops redelivering.
		if h.Cfg.AppEnv != "prod" {
			log.Printf("webhook %s: shop %s (unhandled topic)", topic, res.Shop)
		}
	}

	w.WriteHeader(http.StatusOK)
}
