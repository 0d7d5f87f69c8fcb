package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the records persisted in BadgerDB.
// Timestamps are stored as Unix microseconds; the zero time round-trips as zero.
var (
	LedgerRowMUS    = ledgerRowMUS{}
	RunInfoMUS      = runInfoMUS{}
	CatalogEntryMUS = catalogEntryMUS{}
)

func marshalTime(t time.Time, bs []byte) int {
	var v int64
	if !t.IsZero() {
		v = t.UnixMicro()
	}
	return varint.Int64.Marshal(v, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || v == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var v int64
	if !t.IsZero() {
		v = t.UnixMicro()
	}
	return varint.Int64.Size(v)
}

// stringReader accumulates offsets across consecutive string fields and
// stops at the first error.
type stringReader struct {
	bs  []byte
	n   int
	err error
}

func (r *stringReader) str() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *stringReader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *stringReader) time() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, n, err := unmarshalTime(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

type ledgerRowMUS struct{}

func (s ledgerRowMUS) Marshal(v LedgerRow, bs []byte) (n int) {
	n = ord.String.Marshal(v.Issuer, bs)
	n += ord.String.Marshal(v.Year, bs[n:])
	n += ord.String.Marshal(v.ReportType, bs[n:])
	n += ord.String.Marshal(v.DocumentURL, bs[n:])
	n += ord.String.Marshal(v.DocumentName, bs[n:])
	n += marshalTime(v.IndexedAt, bs[n:])
	return
}

func (s ledgerRowMUS) Unmarshal(bs []byte) (v LedgerRow, n int, err error) {
	r := &stringReader{bs: bs}
	v.Issuer = r.str()
	v.Year = r.str()
	v.ReportType = r.str()
	v.DocumentURL = r.str()
	v.DocumentName = r.str()
	v.IndexedAt = r.time()
	return v, r.n, r.err
}

func (s ledgerRowMUS) Size(v LedgerRow) (size int) {
	size = ord.String.Size(v.Issuer)
	size += ord.String.Size(v.Year)
	size += ord.String.Size(v.ReportType)
	size += ord.String.Size(v.DocumentURL)
	size += ord.String.Size(v.DocumentName)
	return size + sizeTime(v.IndexedAt)
}

type runInfoMUS struct{}

func (s runInfoMUS) Marshal(v RunInfo, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += marshalTime(v.StartedAt, bs[n:])
	n += marshalTime(v.FinishedAt, bs[n:])
	n += varint.Int64.Marshal(int64(v.Pages), bs[n:])
	n += varint.Int64.Marshal(int64(v.Documents), bs[n:])
	return
}

func (s runInfoMUS) Unmarshal(bs []byte) (v RunInfo, n int, err error) {
	r := &stringReader{bs: bs}
	v.ID = r.str()
	v.StartedAt = r.time()
	v.FinishedAt = r.time()
	v.Pages = int(r.int64())
	v.Documents = int(r.int64())
	return v, r.n, r.err
}

func (s runInfoMUS) Size(v RunInfo) (size int) {
	size = ord.String.Size(v.ID)
	size += sizeTime(v.StartedAt)
	size += sizeTime(v.FinishedAt)
	size += varint.Int64.Size(int64(v.Pages))
	return size + varint.Int64.Size(int64(v.Documents))
}

type catalogEntryMUS struct{}

func (s catalogEntryMUS) Marshal(v CatalogEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += ord.String.Marshal(v.URL, bs[n:])
	n += ord.String.Marshal(v.Path, bs[n:])
	n += ord.String.Marshal(v.Checksum, bs[n:])
	n += ord.String.Marshal(v.Issuer, bs[n:])
	n += ord.String.Marshal(v.Year, bs[n:])
	n += ord.String.Marshal(v.ReportType, bs[n:])
	n += varint.Int64.Marshal(v.Size, bs[n:])
	n += varint.Int64.Marshal(int64(v.Chunks), bs[n:])
	n += marshalTime(v.FetchedAt, bs[n:])
	return
}

func (s catalogEntryMUS) Unmarshal(bs []byte) (v CatalogEntry, n int, err error) {
	r := &stringReader{bs: bs}
	v.Name = r.str()
	v.URL = r.str()
	v.Path = r.str()
	v.Checksum = r.str()
	v.Issuer = r.str()
	v.Year = r.str()
	v.ReportType = r.str()
	v.Size = r.int64()
	v.Chunks = int(r.int64())
	v.FetchedAt = r.time()
	return v, r.n, r.err
}

func (s catalogEntryMUS) Size(v CatalogEntry) (size int) {
	size = ord.String.Size(v.Name)
	size += ord.String.Size(v.URL)
	size += ord.String.Size(v.Path)
	size += ord.String.Size(v.Checksum)
	size += ord.String.Size(v.Issuer)
	size += ord.String.Size(v.Year)
	size += ord.String.Size(v.ReportType)
	size += varint.Int64.Size(v.Size)
	size += varint.Int64.Size(int64(v.Chunks))
	return size + sizeTime(v.FetchedAt)
}
