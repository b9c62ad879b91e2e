package www

import (
	"fmt"
	"net/http"

	"github.com/angas/entsoe-go/host"
	"github.com/go-chi/chi/v5"
)

type StateReader interface {
	All() []host.State
	Get(entityID string) (host.State, bool)
}

func NewStatesHandler(states StateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, states.All())
	}
}

func NewStateHandler(states StateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID := chi.URLParam(r, "entityID")
		s, ok := states.Get(entityID)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("entity %s not found", entityID))
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}
