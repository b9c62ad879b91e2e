package www

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewReloadHandler(logger *slog.Logger, reload ReloadFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID := chi.URLParam(r, "entryID")
		if err := reload(r.Context(), entryID); err != nil {
			logger.Error("reloading config entry", slog.String("entry_id", entryID), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"entry_id": entryID, "status": "reloaded"})
	}
}
