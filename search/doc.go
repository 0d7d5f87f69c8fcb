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


// Package search is the retrieval boundary over the indexed filings.
//
// A Searcher embeds a query with the configured provider and returns the
// closest chunks from the vector store together with their provenance
// metadata (source document, URL, issuer, year, report type, chunk index).
// Results keep the vector store's similarity order; no re-ranking is done.
package search
