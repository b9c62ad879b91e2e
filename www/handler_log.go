package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/entsoe-go/logging"
)

type logEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Attrs     string    `json:"attrs,omitempty"`
}

type logPage struct {
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Entries  []logEntry `json:"entries"`
}

func NewLogHandler(logger *slog.Logger, logs LogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := max(intOrDefault(r.URL, "page", 1), 1)
		pageSize := min(max(intOrDefault(r.URL, "pageSize", 25), 1), 500)
		level := r.URL.Query().Get("level")
		minLevel := logging.LevelFromString(&level)
		if level == "" {
			minLevel = slog.LevelDebug
		}

		rows, err := logs.GetLogEntries(r.Context(), minLevel, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		resp := logPage{Page: page, PageSize: pageSize, Entries: make([]logEntry, 0, len(rows))}
		for _, row := range rows {
			resp.Entries = append(resp.Entries, logEntry{
				Timestamp: row.Timestamp,
				Level:     slog.Level(row.Level).String(),
				Message:   row.Message,
				Attrs:     row.Attrs,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
