package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(accessLogMiddleware(apiHandler.log))
	r.Use(apiHandler.recoverMiddleware)
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.StripSlashes)

	notFound := func(w http.ResponseWriter, r *http.Request) {
		apiHandler.respondError(w, r, newAPIError(http.StatusNotFound, "not_found", errors.New("the requested API resource was not found")))
	}
	methodNotAllowed := func(w http.ResponseWriter, r *http.Request) {
		apiHandler.respondError(w, r, newAPIError(http.StatusMethodNotAllowed, "method_not_allowed", errors.New("method not allowed")))
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(notFound)
		r.MethodNotAllowed(methodNotAllowed)

		r.Get("/status", apiHandler.StatusHandler)

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/user/sync", apiHandler.SyncUserHandler)

			r.Post("/chat/create", apiHandler.CreateChatHandler)
			r.Get("/chat/all", apiHandler.ListChatsHandler)
			r.Get("/chat/single/{chatId}", apiHandler.GetChatDetailsHandler)
			r.Post("/chat/message/{chatId}", apiHandler.PostMessageHandler)

			r.Post("/document/upload-stream", apiHandler.UploadStreamHandler)
		})
	})

	return r
}
