package repository

// IsValidSource returns true if s is a supported bar source.
func IsValidSource(s Source) bool {
	switch s {
	case SourceCSV, SourceClickHouse, SourceStooq:
		return true
	default:
		return false
	}
}

// DefaultSource returns the default bar source.
func DefaultSource() Source { return SourceCSV }

// NormalizeSource converts a raw string to a valid source (or default).
func NormalizeSource(s string) Source {
	if s == "" {
		return DefaultSource()
	}
	src := Source(s)
	if IsValidSource(src) {
		return src
	}
	return DefaultSource()
}

// IsValidBackend returns true if b is a supported artifact backend.
func IsValidBackend(b Backend) bool {
	switch b {
	case BackendCSV, BackendClickHouse, BackendKafka:
		return true
	default:
		return false
	}
}

// DefaultBackend returns the default artifact backend.
func DefaultBackend() Backend { return BackendCSV }

// NormalizeBackend converts a raw string to a valid backend (or default).
func NormalizeBackend(s string) Backend {
	if s == "" {
		return DefaultBackend()
	}
	b := Backend(s)
	if IsValidBackend(b) {
		return b
	}
	return DefaultBackend()
}
