// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
	"github.com/AleutianAI/AleutianVital/services/trend/materialize"
)

// =============================================================================
// Trend Store
// =============================================================================

// TrendStore implements materialize.Store over an embedded BadgerDB.
//
// All methods are safe for concurrent use; BadgerDB transactions provide the
// consistency of each call. Cross-call serialization (e.g. two recomputes for
// the same user) is the manager's job, not the store's.
type TrendStore struct {
	db *badger.DB
}

var _ materialize.Store = (*TrendStore)(nil)

// NewTrendStore opens the store with the given configuration.
func NewTrendStore(cfg Config) (*TrendStore, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &TrendStore{db: db}, nil
}

// Close releases the underlying database. Call once on shutdown.
func (s *TrendStore) Close() error {
	return s.db.Close()
}

func obsKey(userID, day string) []byte {
	return []byte("obs/" + userID + "/" + day)
}

func trendKey(userID, day string) []byte {
	return []byte("trend/" + userID + "/" + day)
}

func metaKey(userID string) []byte {
	return []byte("trendmeta/" + userID)
}

// dayFromKey extracts the trailing day segment of an obs/ or trend/ key.
func dayFromKey(key []byte) string {
	k := string(key)
	return k[strings.LastIndexByte(k, '/')+1:]
}

// =============================================================================
// Observations
// =============================================================================

// PutObservation upserts the weight entry for (userID, date). One entry per
// user per day; a second write for the same day overwrites the first.
func (s *TrendStore) PutObservation(ctx context.Context, userID string, date time.Time, weightGrams int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := datatypes.ObservationRecord{
		Date:        datatypes.DayKey(date),
		WeightGrams: weightGrams,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(obsKey(userID, rec.Date), value)
	})
	if err != nil {
		return fmt.Errorf("put observation %s/%s: %w", userID, rec.Date, err)
	}
	return nil
}

// FetchObservations returns the observations with a date in [from, to],
// weights converted to kilograms, timestamped at UTC midnight of their day.
func (s *TrendStore) FetchObservations(ctx context.Context, userID string, from, to time.Time) ([]datatypes.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fromDay := datatypes.DayKey(from)
	toDay := datatypes.DayKey(to)

	var out []datatypes.Observation
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := obsKey(userID, "")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()

		for it.Seek(obsKey(userID, fromDay)); it.Valid(); it.Next() {
			day := dayFromKey(it.Item().Key())
			if day > toDay {
				break
			}
			var rec datatypes.ObservationRecord
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &rec)
			}); err != nil {
				return fmt.Errorf("decode observation %s/%s: %w", userID, day, err)
			}
			date, err := time.Parse(datatypes.DayKeyLayout, rec.Date)
			if err != nil {
				return fmt.Errorf("parse observation date %q: %w", rec.Date, err)
			}
			out = append(out, datatypes.Observation{
				TimestampMs: date.UnixMilli(),
				WeightKg:    datatypes.GramsToKg(rec.WeightGrams),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch observations %s [%s, %s]: %w", userID, fromDay, toDay, err)
	}
	return out, nil
}

// =============================================================================
// Trend Rows
// =============================================================================

// UpsertTrendRows overwrites the given rows in a single transaction.
func (s *TrendStore) UpsertTrendRows(ctx context.Context, userID string, rows []datatypes.TrendRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, row := range rows {
			value, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshal trend row %s: %w", row.Date, err)
			}
			if err := txn.Set(trendKey(userID, row.Date), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %d trend rows for %s: %w", len(rows), userID, err)
	}
	return nil
}

// MarkStale flags every existing row in [from, to] as stale. Rows are never
// deleted here; a stale row is the signal that forces the next read to
// recompute the whole window.
func (s *TrendStore) MarkStale(ctx context.Context, userID string, from, to time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fromDay := datatypes.DayKey(from)
	toDay := datatypes.DayKey(to)

	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := trendKey(userID, "")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()

		// Collect first: writing while iterating the same prefix is
		// undefined in a single badger txn.
		var updates []datatypes.TrendRow
		for it.Seek(trendKey(userID, fromDay)); it.Valid(); it.Next() {
			day := dayFromKey(it.Item().Key())
			if day > toDay {
				break
			}
			var row datatypes.TrendRow
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &row)
			}); err != nil {
				return fmt.Errorf("decode trend row %s/%s: %w", userID, day, err)
			}
			if !row.Stale {
				row.Stale = true
				updates = append(updates, row)
			}
		}
		it.Close()

		for _, row := range updates {
			value, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if err := txn.Set(trendKey(userID, row.Date), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark stale %s [%s, %s]: %w", userID, fromDay, toDay, err)
	}
	return nil
}

// ReadTrendRows returns the rows in [from, to], ascending by date.
func (s *TrendStore) ReadTrendRows(ctx context.Context, userID string, from, to time.Time) ([]datatypes.TrendRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fromDay := datatypes.DayKey(from)
	toDay := datatypes.DayKey(to)

	var out []datatypes.TrendRow
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := trendKey(userID, "")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()

		for it.Seek(trendKey(userID, fromDay)); it.Valid(); it.Next() {
			day := dayFromKey(it.Item().Key())
			if day > toDay {
				break
			}
			var row datatypes.TrendRow
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &row)
			}); err != nil {
				return fmt.Errorf("decode trend row %s/%s: %w", userID, day, err)
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read trend rows %s [%s, %s]: %w", userID, fromDay, toDay, err)
	}
	return out, nil
}

// =============================================================================
// Trend Meta
// =============================================================================

// PutTrendMeta stores the per-user recompute summary.
func (s *TrendStore) PutTrendMeta(ctx context.Context, userID string, meta datatypes.TrendMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal trend meta: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(userID), value)
	})
	if err != nil {
		return fmt.Errorf("put trend meta %s: %w", userID, err)
	}
	return nil
}

// ReadTrendMeta returns the stored summary, or ok=false when the user has
// never completed a recompute.
func (s *TrendStore) ReadTrendMeta(ctx context.Context, userID string) (datatypes.TrendMeta, bool, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.TrendMeta{}, false, err
	}
	var meta datatypes.TrendMeta
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &meta)
		})
	})
	if err != nil {
		return datatypes.TrendMeta{}, false, fmt.Errorf("read trend meta %s: %w", userID, err)
	}
	return meta, found, nil
}
