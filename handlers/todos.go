package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
)

// CreateTodo handles POST /api/todos with a {"text": "..."} body.
func (h *Handlers) CreateTodo(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err := decoder.Decode(&body); err != nil {
		log.Debug("JSON decode error in CreateTodo", "err", err)
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}
	defer r.Body.Close()

	text, ok := body["text"].(string)
	if !ok || text == "" {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": `Missing "text" in request body`})
		return
	}

	todo, err := h.Todos.InsertTodo(r.Context(), text)
	if err != nil {
		log.Error("Failed to create todo", "err", err)
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	respondWithJSON(w, http.StatusOK, todo)
}
