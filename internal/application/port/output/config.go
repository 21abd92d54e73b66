package output

// ConfigPort reads raw settings. Structured configuration is decoded
// elsewhere; this is for the few values read by name.
type ConfigPort interface {
	Get(key string) string
	// Lookup reports whether key is set at all, even to an empty value.
	Lookup(key string) (string, bool)
}
