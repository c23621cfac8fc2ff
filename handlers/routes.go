package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abefas/tasktracker/middleware"
	"github.com/abefas/tasktracker/views"
)

// Router wires every route behind the logging, browser-ID and session
// middleware.
func (h *Handlers) Router(guard middleware.Resolver, secureCookies bool) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger, middleware.BrowserID(secureCookies), middleware.AuthMiddleware(guard))

	router.HandleFunc("/", h.Home).Methods("GET")
	router.HandleFunc("/login", h.LoginPage).Methods("GET")
	router.HandleFunc("/login", h.Login).Methods("POST")
	router.HandleFunc("/logout", h.Logout).Methods("POST")
	router.HandleFunc("/forgot", h.ForgotPage).Methods("GET")
	router.HandleFunc("/forgot", h.Forgot).Methods("POST")
	router.HandleFunc("/auth/reset", h.ResetPage).Methods("GET")
	router.HandleFunc("/auth/reset", h.Reset).Methods("POST")

	router.HandleFunc("/tasks", h.GetTasks).Methods("GET")
	router.HandleFunc("/tasks", h.CreateTask).Methods("POST")
	router.HandleFunc("/tasks/{id}/toggle", h.ToggleTask).Methods("POST")
	router.HandleFunc("/tasks/{id}/title", h.SaveTitle).Methods("POST")
	router.HandleFunc("/tasks/{id}/delete", h.DeleteTask).Methods("POST")
	router.HandleFunc("/notifications/{id}/dismiss", h.DismissNotification).Methods("POST")

	router.HandleFunc("/api/todos", h.CreateTodo).Methods("POST")

	router.PathPrefix("/static/").Handler(views.Static())
	router.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return router
}
