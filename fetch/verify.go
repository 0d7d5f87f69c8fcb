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


package fetch

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/go-crypt/x/blake2b"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/finrag/core"
)

// Status is the outcome of checking one cataloged document.
type Status int

const (
	// StatusOK means the file exists and matches its recorded checksum.
	StatusOK Status = iota
	// StatusMissing means the file no longer exists.
	StatusMissing
	// StatusModified means the file content changed since it was fetched.
	StatusModified
	// StatusUnreadable means the file exists but could not be read.
	StatusUnreadable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMissing:
		return "missing"
	case StatusModified:
		return "modified"
	default:
		return "unreadable"
	}
}

// CatalogLister lists the documents recorded by previous runs.
type CatalogLister interface {
	ListDocuments(ctx context.Context) ([]*core.CatalogEntry, error)
}

// VerifyResult reports the state of one cataloged document.
type VerifyResult struct {
	Entry    *core.CatalogEntry
	Status   Status
	Checksum string
	Err      error
}

// Verify re-hashes every cataloged document using a pool of workers and
// returns one result per entry, in catalog order.
func Verify(ctx context.Context, catalog CatalogLister, workers int) ([]VerifyResult, error) {
	entries, err := catalog.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	results := make([]VerifyResult, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = verifyEntry(entry)
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, submitErr
		}
	}
	wg.Wait()
	return results, nil
}

func verifyEntry(entry *core.CatalogEntry) VerifyResult {
	result := VerifyResult{Entry: entry}

	sum, err := hashFile(entry.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		result.Status = StatusMissing
	case err != nil:
		result.Status = StatusUnreadable
		result.Err = err
	case sum != entry.Checksum:
		result.Status = StatusModified
		result.Checksum = sum
	default:
		result.Status = StatusOK
		result.Checksum = sum
	}
	return result
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
