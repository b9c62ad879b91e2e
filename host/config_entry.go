package host

// ConfigEntry is one configured instance of an integration.
type ConfigEntry struct {
	EntryID string
	Domain  string
	Title   string
	Options map[string]string
}

// Option returns the option value for key, empty when unset.
func (e ConfigEntry) Option(key string) string {
	return e.Options[key]
}
