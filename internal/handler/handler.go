// Package handler exposes the scheduling core over JSON HTTP.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	ws "github.com/dukerupert/suitecal/internal/websocket"
)

// Broadcaster pushes change notifications to connected grids.
type Broadcaster interface {
	Broadcast(msg ws.Message) int
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(ws.Message) int { return 0 }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

const dateLayout = "2006-01-02"

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseTime accepts RFC3339, which is converted to loc, or a wall-clock
// time without offset, which is read in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// parseFlexibleTime also accepts a bare date, meaning midnight in loc.
func parseFlexibleTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc); err == nil {
		return t, nil
	}
	return parseTime(s, loc)
}
