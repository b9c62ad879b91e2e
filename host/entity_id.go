package host

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EntityIDFormat is the format of sensor entity ids.
const EntityIDFormat = "sensor.%s"

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases text, strips diacritics and joins the remaining
// alphanumeric runs with underscores.
func Slugify(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, text)
	if err != nil {
		s = text
	}
	s = nonSlugChars.ReplaceAllString(strings.ToLower(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// GenerateEntityID builds an entity id from name using format and makes it
// unique against live states and entities by appending _2, _3, ...
func (h *Host) GenerateEntityID(format, name string) string {
	base := fmt.Sprintf(format, Slugify(name))
	id := base
	for n := 2; h.entityIDTaken(id); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

func (h *Host) entityIDTaken(id string) bool {
	if h.States.Has(id) {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.entities[id]
	return ok
}
