// Package store provides a thin bbolt wrapper for atmosight's local cache.
//
// The store memoizes the two slow external calls of an analysis: raw daily
// series by (coordinates, variable, year range) and geocoder answers by
// place name. Nothing expires on its own; callers bypass or refresh entries
// explicitly (--no-cache, --refresh) or clear buckets with `cache clear`.
//
// Buckets:
//
//	series   — zstd-compressed raw series envelopes
//	geocode  — place name → coordinates
//	reports  — saved analysis reports
//	_meta    — internal: schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/atmosight/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketSeries   = []byte("series")
	bucketGeocode  = []byte("geocode")
	bucketReports  = []byte("reports")
	bucketInternal = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"series", "geocode", "reports"}

// Store wraps a bbolt database.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	db, err := openBolt(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

func openBolt(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}
	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSeries, bucketGeocode, bucketReports, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Raw Series ───────────────────────────────────────────────────────────────

// SeriesKey builds the canonical key for a raw series entry.
// Format: series:<VAR>|lat:<lat>|lon:<lon>|years:<start>-<end>
// Coordinates are rounded to four decimals (~11 m).
func SeriesKey(variable string, c model.Coordinates, startYear, endYear int) string {
	return fmt.Sprintf("series:%s|lat:%.4f|lon:%.4f|years:%d-%d",
		strings.ToUpper(variable), c.Lat, c.Lon, startYear, endYear)
}

// SeriesEntry is the on-disk envelope for one raw series.
type SeriesEntry struct {
	Variable  string            `json:"variable"`
	Coords    model.Coordinates `json:"coords"`
	StartYear int               `json:"start_year"`
	EndYear   int               `json:"end_year"`
	FetchedAt time.Time         `json:"fetched_at"`
	Raw       model.RawSeries   `json:"raw"`
}

// PutSeries stores a raw series envelope under key, stamping FetchedAt when
// unset.
func (s *Store) PutSeries(key string, e SeriesEntry) error {
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding series: %w", err)
	}
	packed := compress(b)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSeries).Put([]byte(key), packed)
	})
}

// GetSeries retrieves a raw series by key.
// Returns (entry, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetSeries(key string) (SeriesEntry, bool, error) {
	var packed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSeries).Get([]byte(key)); v != nil {
			packed = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || packed == nil {
		return SeriesEntry{}, false, err
	}
	b, err := decompress(packed)
	if err != nil {
		return SeriesEntry{}, false, fmt.Errorf("series %s: %w", key, err)
	}
	var e SeriesEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return SeriesEntry{}, false, fmt.Errorf("decoding series %s: %w", key, err)
	}
	return e, true, nil
}

// DeleteSeries removes a raw series entry.
func (s *Store) DeleteSeries(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSeries).Delete([]byte(key))
	})
}

// ListSeriesKeys returns all series keys for a variable, or every key when
// variable is empty.
func (s *Store) ListSeriesKeys(variable string) ([]string, error) {
	prefix := []byte("series:")
	if variable != "" {
		prefix = []byte("series:" + strings.ToUpper(variable) + "|")
	}
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSeries).Cursor()
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// ─── Geocode ──────────────────────────────────────────────────────────────────

// PutGeocode stores a place under its normalised name.
func (s *Store) PutGeocode(key string, p model.Place) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding place: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGeocode).Put([]byte(key), b)
	})
}

// GetGeocode retrieves a place by normalised name.
func (s *Store) GetGeocode(key string) (model.Place, bool, error) {
	var p model.Place
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketGeocode).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return model.Place{}, false, err
	}
	return p, found, nil
}

// DeleteGeocode removes a cached place.
func (s *Store) DeleteGeocode(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGeocode).Delete([]byte(key))
	})
}

// ─── Reports ──────────────────────────────────────────────────────────────────

// Report is a saved analysis. Payload holds the JSON-encoded result bundle.
type Report struct {
	ID        string          `json:"id"`
	Location  string          `json:"location"`
	Variable  string          `json:"variable"`
	Date      string          `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// PutReport saves a report. The key is report:<ID>.
func (s *Store) PutReport(r Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReports).Put([]byte("report:"+r.ID), b)
	})
}

// GetReport retrieves a report by ID.
func (s *Store) GetReport(id string) (Report, bool, error) {
	var r Report
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketReports).Get([]byte("report:" + id))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return r, false, err
	}
	return r, r.ID != "", nil
}

// ListReports returns all reports, oldest first.
func (s *Store) ListReports() ([]Report, error) {
	var reports []Report
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReports).ForEach(func(k, v []byte) error {
			var r Report
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			reports = append(reports, r)
			return nil
		})
	})
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.Before(reports[j].CreatedAt)
	})
	return reports, err
}

// DeleteReport removes a report by ID. Returns false if it did not exist.
func (s *Store) DeleteReport(id string) (bool, error) {
	existed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		key := []byte("report:" + id)
		existed = b.Get(key) != nil
		return b.Delete(key)
	})
	return existed, err
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets, in
// AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			st := BucketStats{Name: name}
			err := b.ForEach(func(k, v []byte) error {
				st.Count++
				st.Bytes += int64(len(k) + len(v))
				return nil
			})
			if err != nil {
				return err
			}
			stats = append(stats, st)
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	if !isUserBucket(name) {
		return fmt.Errorf("unknown bucket %q (valid: %s)", name, strings.Join(AllBuckets, ", "))
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}

func isUserBucket(name string) bool {
	for _, b := range AllBuckets {
		if b == name {
			return true
		}
	}
	return false
}

// CompactResult reports file sizes around a Compact call.
type CompactResult struct {
	BeforeBytes int64
	AfterBytes  int64
}

// Compact rewrites the database into a fresh file to reclaim free pages,
// then swaps it into place and reopens it.
func (s *Store) Compact() (CompactResult, error) {
	var res CompactResult
	if fi, err := os.Stat(s.path); err == nil {
		res.BeforeBytes = fi.Size()
	}

	tmp := s.path + ".compact"
	_ = os.Remove(tmp)
	dst, err := openBolt(tmp)
	if err != nil {
		return res, err
	}
	if err := bolt.Compact(dst, s.db, 64<<20); err != nil {
		dst.Close()
		os.Remove(tmp)
		return res, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		return res, err
	}
	if err := s.db.Close(); err != nil {
		return res, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return res, fmt.Errorf("replacing db: %w", err)
	}
	db, err := openBolt(s.path)
	if err != nil {
		return res, err
	}
	s.db = db

	if fi, err := os.Stat(s.path); err == nil {
		res.AfterBytes = fi.Size()
	}
	return res, nil
}
