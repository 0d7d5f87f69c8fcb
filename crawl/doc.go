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


// Package crawl discovers filings on the paginated financial statements
// listing and resolves each filing's report page to its PDF attachment.
//
// A Session carries the HTTP client, User-Agent and base site shared by the
// Crawler and the Resolver. Pages are parsed with goquery after decoding the
// response body to UTF-8.
package crawl
