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

// Package conflict compares entity snapshots to detect and explain
// concurrent modification by other writers.
package conflict

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/innovationmech/checkout/pkg/checkout"
)

// updatedAtFields are the timestamp field names checked, in order, before
// falling back to structural comparison.
var updatedAtFields = []string{"updatedAt", "updated_at"}

// DefaultIgnoreFields are the fields excluded from the structural fallback
// comparison by default: identifiers and creation stamps never indicate a
// concurrent modification.
var DefaultIgnoreFields = []string{"id", "ref", "createdAt"}

// Detector compares two snapshots of the same entity: the one read when a
// transaction started against the one now on the server.
type Detector struct {
	ignore map[string]struct{}
}

// NewDetector creates a detector. With no arguments the default ignore list
// applies; passing field names replaces it entirely, making the exclusion an
// explicit caller decision rather than an inferred one.
func NewDetector(ignoreFields ...string) *Detector {
	if len(ignoreFields) == 0 {
		ignoreFields = DefaultIgnoreFields
	}
	ignore := make(map[string]struct{}, len(ignoreFields))
	for _, field := range ignoreFields {
		ignore[field] = struct{}{}
	}
	return &Detector{ignore: ignore}
}

// DetectConcurrentModification reports whether the server snapshot differs
// from the client snapshot in a way that indicates another writer.
//
// Both missing means no conflict; an existence mismatch always is one. When
// both snapshots carry an updatedAt-style field the comparison is decided by
// that field alone; otherwise every non-ignored field is compared by deep
// equality.
func (d *Detector) DetectConcurrentModification(client, server map[string]interface{}) bool {
	if client == nil && server == nil {
		return false
	}
	if client == nil || server == nil {
		return true
	}

	if clientStamp, ok := updatedAtOf(client); ok {
		if serverStamp, ok := updatedAtOf(server); ok {
			return !reflect.DeepEqual(clientStamp, serverStamp)
		}
	}

	for field := range union(client, server) {
		if _, skip := d.ignore[field]; skip {
			continue
		}
		if !reflect.DeepEqual(client[field], server[field]) {
			return true
		}
	}
	return false
}

// HasFieldChanged reports whether the value at a dot-separated path differs
// between the two snapshots. An existence mismatch on either side is itself
// a change.
func (d *Detector) HasFieldChanged(client, server map[string]interface{}, fieldPath string) bool {
	clientValue, clientOK := lookupPath(client, fieldPath)
	serverValue, serverOK := lookupPath(server, fieldPath)
	if clientOK != serverOK {
		return true
	}
	if !clientOK {
		return false
	}
	return !reflect.DeepEqual(clientValue, serverValue)
}

// NewFieldConflictInfo builds the presentation explanation for a field-level
// conflict. Pure function; operationType names the caller's context
// ("checkout", "payment") so the wording matches it.
func NewFieldConflictInfo(fieldName, operationType string) checkout.ConflictInfo {
	if operationType == "" {
		operationType = "operation"
	}
	return checkout.ConflictInfo{
		FieldName:    fieldName,
		ConflictType: checkout.ConflictTypeDataChanged,
		Message:      fmt.Sprintf("The %s was changed while your %s was in progress.", fieldName, operationType),
		Detail:       fmt.Sprintf("Another device or user modified %s after this %s started.", fieldName, operationType),
		Resolution:   fmt.Sprintf("Refresh to load the latest %s, then try the %s again.", fieldName, operationType),
	}
}

// updatedAtOf returns the first updatedAt-style value present in the
// snapshot.
func updatedAtOf(snapshot map[string]interface{}) (interface{}, bool) {
	for _, field := range updatedAtFields {
		if value, ok := snapshot[field]; ok {
			return value, true
		}
	}
	return nil, false
}

// lookupPath resolves a dot-separated path through nested maps.
func lookupPath(snapshot map[string]interface{}, path string) (interface{}, bool) {
	if snapshot == nil || path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")
	var current interface{} = snapshot
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// union yields the set of keys present in either snapshot.
func union(a, b map[string]interface{}) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}
