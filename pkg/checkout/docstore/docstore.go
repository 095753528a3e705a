// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package docstore defines the contract of the remote document store's
// atomic read-modify-write primitive, the tagged error codes it reports, and
// an in-memory implementation with optimistic concurrency control used for
// tests and local development. The checkout library never implements the
// production backend; it classifies the outputs of this contract.
package docstore

import (
	"context"
	"time"
)

// Document is a versioned document snapshot. Data is deep-copied at the
// store boundary; mutating a returned document never affects stored state.
type Document struct {
	ID        string
	Data      map[string]interface{}
	Version   int64
	UpdatedAt time.Time
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		ID:        d.ID,
		Data:      deepCopyMap(d.Data),
		Version:   d.Version,
		UpdatedAt: d.UpdatedAt,
	}
}

// Tx is the handle passed to a transaction function. All reads are tracked;
// the commit aborts with CodeAborted if any read document was modified by
// another writer before the writes apply. Writes are staged and applied
// atomically on commit.
type Tx interface {
	// Get reads a document, recording it for the commit-time version check.
	// Returns a CodeNotFound error if the document does not exist; the
	// absence is also recorded and validated at commit.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Create stages a document creation. The commit fails with
	// CodeAlreadyExists if the document exists by then.
	Create(ctx context.Context, collection, id string, data map[string]interface{}) error

	// Set stages an upsert of the document's data.
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error

	// Delete stages a document removal.
	Delete(ctx context.Context, collection, id string) error
}

// TxFunc is the read-modify-write body of a transaction. It may be invoked
// multiple times across retries and must not carry state between invocations.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the atomic commit primitive consumed by the checkout library.
type Store interface {
	// RunTransaction executes fn and commits its staged writes atomically.
	// Failures are reported as tagged BackendErrors.
	RunTransaction(ctx context.Context, fn TxFunc) error

	// Get reads a single document outside any transaction.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Close releases resources held by the store.
	Close() error
}

// deepCopyMap copies a document data map, descending into nested maps and
// slices. Scalar values are shared (they are immutable).
func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(tv)
	case []interface{}:
		cp := make([]interface{}, len(tv))
		for i, e := range tv {
			cp[i] = deepCopyValue(e)
		}
		return cp
	default:
		return v
	}
}
