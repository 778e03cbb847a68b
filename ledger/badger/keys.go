package badger

// ingestionPrefix namespaces ledger entries.
const ingestionPrefix = "ing:"

// makeEntryKey generates the key for the entry of a content hash.
// Format: ing:<hash>
func makeEntryKey(contentHash string) []byte {
	buf := make([]byte, len(ingestionPrefix)+len(contentHash))
	offset := copy(buf, ingestionPrefix)
	copy(buf[offset:], contentHash)
	return buf
}
