package domain

// Key prefixes partitioning the shared store. Every key the engine writes
// starts with one of these.
const (
	// KeyPrefixDocument prefixes keyword index document hashes
	// (sl:doc:<entityType>:<entityID>).
	KeyPrefixDocument = "sl:doc:"
	// KeyPrefixVector prefixes vector hashes (sl:vec:<vectorRef>).
	KeyPrefixVector = "sl:vec:"
	// KeyPrefixSuggestion prefixes suggestion term hashes (sl:sugg:<term>).
	KeyPrefixSuggestion = "sl:sugg:"
	// KeyPrefixQueryLog prefixes query log hashes (sl:qlog:<id>).
	KeyPrefixQueryLog = "sl:qlog:"
	// KeyPrefixClick prefixes result click hashes (sl:click:<id>).
	KeyPrefixClick = "sl:click:"
	// KeyPrefixCache prefixes cached search responses and cache epochs.
	KeyPrefixCache = "sl:cache:"
)

// FT index names.
const (
	// DocumentIndexName is the FT index over document hashes.
	DocumentIndexName = "sl-documents"
	// VectorIndexName is the FT index over vector hashes.
	VectorIndexName = "sl-vectors"
)
