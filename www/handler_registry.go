package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/entsoe-go/host"
)

func NewRegistryHandler(logger *slog.Logger, registry host.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := registry.List()
		if err != nil {
			logger.Error("handling registry request", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if entries == nil {
			entries = []host.RegistryEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
