// Package ingestion drives filings from the listing into the vector store.
//
// A Pipeline walks every listing page and takes each filing record through
// resolve, fetch, extract, chunk and index, one record at a time. Records
// that fail with one of the record-level errors in core (unresolvable link,
// fetch failure, extraction failure, empty text, embedding failure) are
// logged, counted in the RunSummary and skipped. Any other error stops the
// run.
//
// Every indexed document is appended to the run's ledger, which is
// persisted when a LedgerRepository is configured and exported as CSV
// when an export path is set.
//
// A Reindexer rebuilds the vector store from the cataloged documents
// without going back to the network, for example after switching the
// embedding model.
package ingestion
