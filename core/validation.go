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

import (
	"fmt"
	"strings"
)

// ValidateFilingRecord checks a parsed listing row against the row schema.
//
// Validation rules:
//   - ReportTypeLink is required (NotAvailable is rejected)
//
// Issuer, Year and ReportTypeLabel are optional. Each one holding
// NotAvailable is returned as a field name in missing, so callers can log it.
func ValidateFilingRecord(record *FilingRecord) (missing []string, err error) {
	if record == nil {
		return nil, fmt.Errorf("%w: record is nil", ErrInvalidFilingRecord)
	}

	for _, f := range []struct {
		name  string
		value string
	}{
		{"issuer", record.Issuer},
		{"year", record.Year},
		{"report_type", record.ReportTypeLabel},
	} {
		if f.value == "" || f.value == NotAvailable {
			missing = append(missing, f.name)
		}
	}

	if !record.HasReportLink() {
		missing = append(missing, "report_link")
		return missing, fmt.Errorf("%w: %w: report_link", ErrInvalidFilingRecord, ErrMissingField)
	}
	return missing, nil
}

// ValidateLedgerRow validates a LedgerRow according to domain rules.
//
// Validation rules:
//   - DocumentURL must not be empty
//   - DocumentName must not be empty
//
// Issuer, Year and ReportType may hold NotAvailable.
func ValidateLedgerRow(row *LedgerRow) error {
	if row == nil {
		return fmt.Errorf("%w: row is nil", ErrInvalidLedgerRow)
	}
	if strings.TrimSpace(row.DocumentURL) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidLedgerRow, ErrEmptyDocumentURL)
	}
	if strings.TrimSpace(row.DocumentName) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidLedgerRow, ErrEmptyDocumentName)
	}
	return nil
}
