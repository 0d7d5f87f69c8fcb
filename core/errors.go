// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Ingestion failure taxonomy. Errors wrapping one of these affect a single
// filing record only; the run continues with the next record.
var (
	// ErrMissingField indicates a listing cell was absent and NotAvailable was substituted.
	ErrMissingField = errors.New("missing listing field")

	// ErrUnresolvableLink indicates the report page had no PDF attachment.
	ErrUnresolvableLink = errors.New("no pdf attachment on report page")

	// ErrFetchFailed indicates a page or document could not be downloaded or stored.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrExtractionFailed indicates the document could not be opened as a PDF.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrEmptyText indicates the document yielded no usable text.
	ErrEmptyText = errors.New("extracted text is empty")

	// ErrEmbeddingFailed indicates embedding or vector store upsert failed.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrEmptyBatch indicates an embedding batch had no non-blank text.
	ErrEmptyBatch = errors.New("empty embedding batch")
)

// Domain validation errors
var (
	// ErrInvalidLedgerRow indicates a LedgerRow failed validation.
	ErrInvalidLedgerRow = errors.New("invalid ledger row")

	// ErrInvalidFilingRecord indicates a FilingRecord failed validation.
	ErrInvalidFilingRecord = errors.New("invalid filing record")

	// ErrEmptyDocumentName indicates the DocumentName field is empty.
	ErrEmptyDocumentName = errors.New("document name cannot be empty")

	// ErrEmptyDocumentURL indicates the DocumentURL field is empty.
	ErrEmptyDocumentURL = errors.New("document url cannot be empty")
)

// IsRecordFailure reports whether err belongs to the per-record failure
// taxonomy, as opposed to an error that should end the run.
func IsRecordFailure(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrUnresolvableLink) ||
		errors.Is(err, ErrFetchFailed) ||
		errors.Is(err, ErrExtractionFailed) ||
		errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrEmbeddingFailed)
}
