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


package storage

import (
	"fmt"

	"github.com/poiesic/finrag/core"
)

// MarshalLedgerRow serializes a LedgerRow to bytes.
func MarshalLedgerRow(row *core.LedgerRow) []byte {
	buf := make([]byte, core.LedgerRowMUS.Size(*row))
	core.LedgerRowMUS.Marshal(*row, buf)
	return buf
}

// UnmarshalLedgerRow deserializes a LedgerRow from bytes.
func UnmarshalLedgerRow(data []byte) (*core.LedgerRow, error) {
	row, _, err := core.LedgerRowMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger row: %w", ErrSerializationFailed, err)
	}
	return &row, nil
}

// MarshalRunInfo serializes a RunInfo to bytes.
func MarshalRunInfo(run *core.RunInfo) []byte {
	buf := make([]byte, core.RunInfoMUS.Size(*run))
	core.RunInfoMUS.Marshal(*run, buf)
	return buf
}

// UnmarshalRunInfo deserializes a RunInfo from bytes.
func UnmarshalRunInfo(data []byte) (*core.RunInfo, error) {
	run, _, err := core.RunInfoMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: run info: %w", ErrSerializationFailed, err)
	}
	return &run, nil
}

// MarshalCatalogEntry serializes a CatalogEntry to bytes.
func MarshalCatalogEntry(entry *core.CatalogEntry) []byte {
	buf := make([]byte, core.CatalogEntryMUS.Size(*entry))
	core.CatalogEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalCatalogEntry deserializes a CatalogEntry from bytes.
func UnmarshalCatalogEntry(data []byte) (*core.CatalogEntry, error) {
	entry, _, err := core.CatalogEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog entry: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}
