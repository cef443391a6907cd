package storage

// Store is the durable layer beneath the engine. One record per
// extension id holds that extension's entire serialized mapping; the
// mapping is the unit of durability, not individual keys.
type Store interface {
	// Load returns the serialized mapping, or ok=false if none exists.
	Load(extensionID string) (data []byte, ok bool, err error)
	// Save atomically replaces the serialized mapping.
	Save(extensionID string, data []byte) error
	// Delete removes the record. Absent records are not an error.
	Delete(extensionID string) error
	Close() error
}
