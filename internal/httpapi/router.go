package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appauth/internal/api"
	"appauth/internal/shopstore"
	"appauth/internal/webhook"
	"appauth/pkg/config"
	"appauth/pkg/shopify"
)

type Dependencies struct {
	Cfg config.Config
	DB  *pgxpool.Pool
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	store := shopstore.NewStore(deps.DB)
	handlers := api.Handlers{
		Cfg:     deps.Cfg,
		GraphQL: shopify.GraphQLClient{},
	}
	webhookHandler := webhook.Handler{
		Cfg:   deps.Cfg,
		Store: store,
	}

	// v1
	r.Route("/v1", func(r chi.Router) {
		// Embedded admin (document + fetch requests).
		r.Group(func(r chi.Router) {
			r.Use(api.EmbeddedAuth(deps.Cfg, store))

			r.Get("/api/shop", handlers.Shop)
			r.Get("/api/products", handlers.Products)
		})

		// Admin UI extensions (bearer id token, exchangeable).
		r.Group(func(r chi.Router) {
			r.Use(api.ExtensionAuth(deps.Cfg, store))

			r.Get("/extension/shop", handlers.Shop)
			r.Get("/extension/products", handlers.Products)
		})

		// Checkout / customer-account extensions (identity only).
		r.Group(func(r chi.Router) {
			r.Use(api.CheckoutExtensionAuth(deps.Cfg))

			r.Get("/checkout/shop", handlers.Shop)
		})

		// Storefront app proxy (signed query string).
		r.Group(func(r chi.Router) {
			r.Use(api.ProxyAuth(deps.Cfg))

			r.Get("/proxy/ping", handlers.ProxyPing)
		})

		// Webhooks
		r.Post("/webhooks/shopify/{topic}", webhookHandler.ServeHTTP)
	})

	return r
}
