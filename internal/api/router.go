package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(apiHandler *APIHandler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", apiHandler.HealthHandler)
		r.Post("/sessions", apiHandler.StartSessionHandler)
		r.Post("/chat", apiHandler.ChatHandler)
		r.Post("/tts", apiHandler.TTSHandler)
		r.Get("/speech/{clipID}", apiHandler.SpeechClipHandler)
		r.Get("/chain/predictions/{predictionID}", apiHandler.ChainPredictionHandler)
		r.Get("/personas/{userID}", apiHandler.GetPersonaHandler)
		r.Get("/predictions", apiHandler.ListPredictionsHandler)
		r.Post("/x402/demo-payment", apiHandler.MicropaymentHandler)

		// Session-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/session", apiHandler.GetSessionHandler)
			r.Delete("/session", apiHandler.EndSessionHandler)

			r.Get("/session/messages", apiHandler.ListMessagesHandler)
			r.Post("/session/messages", apiHandler.SendMessageHandler)

			r.Route("/session/wizard", func(r chi.Router) {
				r.Get("/", apiHandler.WizardStateHandler)
				r.Post("/select", apiHandler.WizardSelectHandler)
				r.Post("/toggle", apiHandler.WizardToggleHandler)
				r.Post("/continue", apiHandler.WizardContinueHandler)
				r.Post("/back", apiHandler.WizardBackHandler)
				r.Post("/finish", apiHandler.WizardFinishHandler)
			})
		})
	})

	return r
}
