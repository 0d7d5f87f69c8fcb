// Package index turns the chunks of a document into vector store entries.
//
// A document is embedded with a single batch request and written with a
// single upsert. Entry IDs are derived from the document name, the chunk
// index, the chunk text and the run ID, so every run appends its own
// entries. With dedup enabled the run ID is left out of the key and
// indexing the same document again replaces its entries.
package index
