package core

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// NotAvailable is the sentinel substituted for listing fields that could not be found.
const NotAvailable = "N/A"

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// IDFromParts hashes the parts as length-prefixed fields so that
// ("ab", "c") and ("a", "bc") never collide.
func IDFromParts(parts ...string) ID {
	h, _ := blake2b.New(8, nil)
	var lenBuf [binary.MaxVarintLen64]byte
	for _, p := range parts {
		n := binary.PutUvarint(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:n])
		h.Write([]byte(p))
	}
	return ID(binary.LittleEndian.Uint64(h.Sum(nil)))
}

// Hex renders the ID as 16 lowercase hex digits.
func (id ID) Hex() string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return hex.EncodeToString(buf[:])
}

// Checksum returns the hex encoded BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FilingRecord is one row of the filings listing.
// Every string field holds either a value or NotAvailable.
type FilingRecord struct {
	Page            int
	Row             int
	Issuer          string
	Year            string
	ReportTypeLabel string
	ReportTypeLink  string
}

// HasReportLink reports whether the record can be followed to a report page.
func (r *FilingRecord) HasReportLink() bool {
	return r.ReportTypeLink != "" && r.ReportTypeLink != NotAvailable
}

// WarningKind classifies problems found while parsing a listing page.
type WarningKind int

const (
	// FieldAbsent means a cell or element was missing and NotAvailable was used.
	FieldAbsent WarningKind = iota + 1
	// PageMalformed means the page had no parsable listing table.
	PageMalformed
)

// String returns the log-friendly name of the kind.
func (k WarningKind) String() string {
	switch k {
	case FieldAbsent:
		return "field_absent"
	case PageMalformed:
		return "page_malformed"
	default:
		return "unknown"
	}
}

// RowWarning describes a schema violation on a listing row.
type RowWarning struct {
	Page  int
	Row   int
	Field string
	Kind  WarningKind
}

// ListingPage is the parsed content of one listing page.
type ListingPage struct {
	Index    int
	Records  []FilingRecord
	Warnings []RowWarning
}

// ResolvedDocument is a filing whose report page pointed at a downloadable PDF.
type ResolvedDocument struct {
	Filing FilingRecord
	URL    string
	Name   string
}

// FetchedFile is a document persisted to the local content store.
type FetchedFile struct {
	Document ResolvedDocument
	Path     string
	Size     int64
	Checksum string
}

// ExtractedText is the text recovered from a fetched document.
type ExtractedText struct {
	Text        string
	Pages       int
	FailedPages []int
}

// IsBlank reports whether the extracted text has no usable content.
func (t *ExtractedText) IsBlank() bool {
	return strings.TrimSpace(t.Text) == ""
}

// ChunkMetadata is the provenance carried by every chunk of a document.
type ChunkMetadata struct {
	Source     string // document name
	URL        string
	Issuer     string
	Year       string
	ReportType string
}

// TextChunk is a window of a document's extracted text.
// Start and End are rune offsets into the extracted text.
type TextChunk struct {
	Index    int
	Start    int
	End      int
	Text     string
	Metadata ChunkMetadata
}

// Metadata keys stored with each indexed entry.
const (
	MetaSource     = "source"
	MetaURL        = "url"
	MetaIssuer     = "issuer"
	MetaYear       = "year"
	MetaReportType = "report_type"
	MetaChunkIndex = "chunk_index"
)

// EntryMetadata flattens the chunk provenance into vector store metadata.
func (c *TextChunk) EntryMetadata() map[string]string {
	return map[string]string{
		MetaSource:     c.Metadata.Source,
		MetaURL:        c.Metadata.URL,
		MetaIssuer:     c.Metadata.Issuer,
		MetaYear:       c.Metadata.Year,
		MetaReportType: c.Metadata.ReportType,
		MetaChunkIndex: strconv.Itoa(c.Index),
	}
}

// IndexedEntry is a chunk as stored in the vector store.
type IndexedEntry struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// LedgerRow records one successfully indexed document.
type LedgerRow struct {
	Issuer       string
	Year         string
	ReportType   string
	DocumentURL  string
	DocumentName string
	IndexedAt    time.Time
}

// RunInfo summarizes a completed ingestion run.
type RunInfo struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Documents  int
}

// CatalogEntry describes the latest fetched copy of a document and the
// filing it was published under.
type CatalogEntry struct {
	Name       string
	URL        string
	Path       string
	Checksum   string
	Issuer     string
	Year       string
	ReportType string
	Size       int64
	Chunks     int
	FetchedAt  time.Time
}

// SearchResult is a vector store hit with its similarity score.
type SearchResult struct {
	Entry IndexedEntry
	Score float32
}
