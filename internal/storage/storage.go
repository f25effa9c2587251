// Package storage defines the persistent vector store behind named collections.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/ragindex/internal/models"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Record is one embedded chunk as persisted in a collection.
type Record struct {
	ID       string
	Content  string
	Metadata models.Metadata
	Vector   []float32
}

// Match is a Record returned by a similarity query, without its vector.
type Match struct {
	ID       string
	Content  string
	Metadata models.Metadata
	Score    float64
}

// Store persists embedded chunks in named collections.
//
// Add is insert-or-ignore on (collection, id): a record whose ID already exists in the
// collection is silently skipped. Callers rely on this to make concurrent ingestion of
// the same corpus safe without locking.
type Store interface {
	EnsureCollection(ctx context.Context, name string) error
	Collections(ctx context.Context) ([]string, error)
	IDs(ctx context.Context, collection string) ([]string, error)
	Add(ctx context.Context, collection string, records []Record) (int, error)
	Query(ctx context.Context, collection string, query []float32, k int, terms []models.FilterTerm) ([]Match, error)
	Count(ctx context.Context, collection string) (int64, error)
	Close() error
}

func matchesTerms(m models.Metadata, terms []models.FilterTerm) bool {
	for _, t := range terms {
		v, ok := m[t.Key]
		if !ok || !models.ValuesEqual(v, t.Value) {
			return false
		}
	}
	return true
}
