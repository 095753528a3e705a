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

package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with optimistic concurrency control.
// Every read inside a transaction records the document version it observed;
// the commit aborts with CodeAborted if any of those versions changed before
// the writes apply. Suitable for tests and local development.
//
// The store is safe for concurrent use from multiple goroutines.
type MemoryStore struct {
	// mu protects collections, closed and injected
	mu sync.RWMutex

	// collections maps collection name -> document ID -> document
	collections map[string]map[string]*Document

	// injected is a FIFO queue of failures returned by upcoming commits
	injected []*BackendError

	// closed indicates whether the store has been closed
	closed bool
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*Document),
	}
}

// FailNextCommit queues a tagged failure for the next commit. Queued
// failures are consumed in order, one per commit, before any writes apply.
// Test hook.
func (m *MemoryStore) FailNextCommit(code Code, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injected = append(m.injected, NewBackendError(code, message))
}

// Seed writes a document directly, bypassing transactions. Test hook.
func (m *MemoryStore) Seed(collection, id string, data map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(collection, id, data)
}

// Get reads a single document outside any transaction.
func (m *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if ctx.Err() != nil {
		return nil, WrapBackendError(CodeDeadlineExceeded, "context cancelled", ctx.Err())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, NewBackendError(CodeNotFound, fmt.Sprintf("document %s/%s not found", collection, id))
	}
	return doc.Clone(), nil
}

// RunTransaction executes fn with read tracking and commits its staged
// writes atomically. A queued injected failure, a version mismatch on any
// read document, or a create against an existing document all abort the
// commit without applying writes.
func (m *MemoryStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	if ctx.Err() != nil {
		return WrapBackendError(CodeDeadlineExceeded, "context cancelled", ctx.Err())
	}

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrStoreClosed
	}

	tx := &memoryTx{
		store:  m,
		reads:  make(map[docKey]int64),
		staged: make(map[docKey]*stagedDoc),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return m.commit(ctx, tx)
}

// Close releases the store. Subsequent operations fail with ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStore) commit(ctx context.Context, tx *memoryTx) error {
	if ctx.Err() != nil {
		return WrapBackendError(CodeDeadlineExceeded, "context cancelled", ctx.Err())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if len(m.injected) > 0 {
		failure := m.injected[0]
		m.injected = m.injected[1:]
		return failure
	}

	// Optimistic concurrency check: every document read inside the
	// transaction must still be at the version that was observed.
	for key, version := range tx.reads {
		current := int64(0)
		if doc, ok := m.collections[key.collection][key.id]; ok {
			current = doc.Version
		}
		if current != version {
			return NewBackendError(CodeAborted,
				fmt.Sprintf("document %s/%s was modified by a concurrent writer", key.collection, key.id))
		}
	}

	for _, op := range tx.writes {
		switch op.kind {
		case opCreate:
			if _, exists := m.collections[op.collection][op.id]; exists {
				return NewBackendError(CodeAlreadyExists,
					fmt.Sprintf("document %s/%s already exists", op.collection, op.id))
			}
			m.putLocked(op.collection, op.id, op.data)
		case opSet:
			m.putLocked(op.collection, op.id, op.data)
		case opDelete:
			delete(m.collections[op.collection], op.id)
		}
	}

	return nil
}

// putLocked upserts a document, bumping its version. Callers hold mu.
func (m *MemoryStore) putLocked(collection, id string, data map[string]interface{}) {
	col, ok := m.collections[collection]
	if !ok {
		col = make(map[string]*Document)
		m.collections[collection] = col
	}
	version := int64(1)
	if existing, ok := col[id]; ok {
		version = existing.Version + 1
	}
	col[id] = &Document{
		ID:        id,
		Data:      deepCopyMap(data),
		Version:   version,
		UpdatedAt: time.Now(),
	}
}

type docKey struct {
	collection string
	id         string
}

const (
	opCreate = iota
	opSet
	opDelete
)

type writeOp struct {
	kind       int
	collection string
	id         string
	data       map[string]interface{}
}

type stagedDoc struct {
	deleted bool
	data    map[string]interface{}
}

// memoryTx tracks reads and stages writes for a single transaction attempt.
// It supports read-your-writes within the attempt.
type memoryTx struct {
	store  *MemoryStore
	reads  map[docKey]int64
	writes []writeOp
	staged map[docKey]*stagedDoc
}

func (t *memoryTx) Get(ctx context.Context, collection, id string) (*Document, error) {
	if ctx.Err() != nil {
		return nil, WrapBackendError(CodeDeadlineExceeded, "context cancelled", ctx.Err())
	}

	key := docKey{collection, id}

	if staged, ok := t.staged[key]; ok {
		if staged.deleted {
			return nil, NewBackendError(CodeNotFound, fmt.Sprintf("document %s/%s not found", collection, id))
		}
		return &Document{ID: id, Data: deepCopyMap(staged.data)}, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if t.store.closed {
		return nil, ErrStoreClosed
	}

	doc, ok := t.store.collections[collection][id]
	if !ok {
		// Record the observed absence so a concurrent create aborts us.
		t.reads[key] = 0
		return nil, NewBackendError(CodeNotFound, fmt.Sprintf("document %s/%s not found", collection, id))
	}

	t.reads[key] = doc.Version
	return doc.Clone(), nil
}

func (t *memoryTx) Create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if ctx.Err() != nil {
		return WrapBackendError(CodeDeadlineExceeded, "context cancelled", ctx.Err())
	}
	t.writes = append(t.writes, writeOp{opCreate, collection, id, deepCopyMap(data)})
	t.staged[docKey{collection, id}] = &stagedDoc{data: deepCopyMap(data)}
	return nil
}

func (t *memoryTx) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if ctx.Err() != nil {
		return WrapBackendError(CodeDeadlineExceeded, "context cancelled", ctx.Err())
	}
	t.writes = append(t.writes, writeOp{opSet, collection, id, deepCopyMap(data)})
	t.staged[docKey{collection, id}] = &stagedDoc{data: deepCopyMap(data)}
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, collection, id string) error {
	if ctx.Err() != nil {
		return WrapBackendError(CodeDeadlineExceeded, "context cancelled", ctx.Err())
	}
	t.writes = append(t.writes, writeOp{kind: opDelete, collection: collection, id: id})
	t.staged[docKey{collection, id}] = &stagedDoc{deleted: true}
	return nil
}
