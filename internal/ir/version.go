package ir

// Version constants for the persisted schema and the application.
const (
	// SchemaVersion is the store schema version the migrator upgrades to.
	SchemaVersion = 1

	// AppVersion is the snaptext version.
	AppVersion = "0.1.0"
)
