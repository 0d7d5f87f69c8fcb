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


// Package storage defines the persistence interfaces used by finrag.
//
// Two backends implement them:
//
//   - storage/chromem: VectorStore on a chromem-go collection persisted to a directory
//   - storage/badger: LedgerRepository and CatalogRepository on BadgerDB
//
// Public constructors return interfaces so consumers never depend on a
// specific backend; tests use the in-memory variants of both.
package storage
