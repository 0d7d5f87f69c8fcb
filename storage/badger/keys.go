package badger

import (
	"encoding/binary"
)

// Key prefixes for different data types
const (
	ledgerRowPrefix = "ledrow"
	ledgerRowSeq    = "ledrowseq"
	runInfoPrefix   = "runinf"
	catalogPrefix   = "catdoc"
)

// makeLedgerRunPrefix generates the prefix shared by all rows of a run.
// Format: prefix:runID:
func makeLedgerRunPrefix(runID string) []byte {
	return []byte(ledgerRowPrefix + ":" + runID + ":")
}

// makeLedgerRowKey generates a composite key for a ledger row.
// Format: prefix:runID:seq
func makeLedgerRowKey(runID string, seq uint64) []byte {
	prefix := makeLedgerRunPrefix(runID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// BigEndian keeps rows in append order under lexicographic iteration
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeRunKey generates a key for a run summary by ID.
func makeRunKey(runID string) []byte {
	return []byte(runInfoPrefix + ":" + runID)
}

// makeCatalogKey generates a key for a catalog entry by document name.
func makeCatalogKey(name string) []byte {
	return []byte(catalogPrefix + ":" + name)
}
