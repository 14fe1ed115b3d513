package sessionstore

// Slots is a flat key-value backend holding the named session slots.
// Deleting a missing key is not an error.
type Slots interface {
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
	Delete(key string) error
}

// BatchSlots is implemented by backends that can change several slots in a
// single atomic step. Readers observe either all of the changes or none.
type BatchSlots interface {
	Slots
	Apply(puts map[string]string, deletes []string) error
	// GetAll reads keys from one snapshot. Missing keys are absent from the
	// result.
	GetAll(keys []string) (map[string]string, error)
}
