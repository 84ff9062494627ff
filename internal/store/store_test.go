package store_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// testDB opens a fresh isolated database in t.TempDir().
// It is closed automatically when the test ends.
func testDB(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var faisalabad = model.Coordinates{Lat: 31.4154, Lon: 73.0897}

func makeEntry(n int) store.SeriesEntry {
	raw := make(model.RawSeries, n)
	start := time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		raw[start.AddDate(0, 0, i).Format("20060102")] = "21.5"
	}
	raw["19910102"] = ""
	return store.SeriesEntry{
		Variable:  "T2M",
		Coords:    faisalabad,
		StartYear: 1991,
		EndYear:   1992,
		Raw:       raw,
	}
}

// ─── Open / Path ──────────────────────────────────────────────────────────────

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path: expected %q, got %q", path, s.Path())
	}
}

func TestOpenReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutGeocode("faisalabad", model.Place{Name: "Faisalabad", Lat: 1, Lon: 2}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if _, ok, _ := s2.GetGeocode("faisalabad"); !ok {
		t.Error("place lost across reopen")
	}
}

// ─── Series ───────────────────────────────────────────────────────────────────

func TestSeriesKeyFormat(t *testing.T) {
	got := store.SeriesKey("t2m", faisalabad, 1991, 2024)
	want := "series:T2M|lat:31.4154|lon:73.0897|years:1991-2024"
	if got != want {
		t.Errorf("SeriesKey: got %q, want %q", got, want)
	}
}

func TestPutGetSeries(t *testing.T) {
	s := testDB(t)
	key := store.SeriesKey("T2M", faisalabad, 1991, 1992)
	if err := s.PutSeries(key, makeEntry(400)); err != nil {
		t.Fatalf("PutSeries: %v", err)
	}

	got, ok, err := s.GetSeries(key)
	if err != nil || !ok {
		t.Fatalf("GetSeries: ok=%v err=%v", ok, err)
	}
	if len(got.Raw) != 400 {
		t.Errorf("Raw: expected 400 entries, got %d", len(got.Raw))
	}
	if got.Raw["19910102"] != "" {
		t.Errorf("missing marker lost: %q", got.Raw["19910102"])
	}
	if got.Raw["19910101"] != "21.5" {
		t.Errorf("value: got %q", got.Raw["19910101"])
	}
	if got.FetchedAt.IsZero() {
		t.Error("FetchedAt should be stamped")
	}
	if got.Coords != faisalabad {
		t.Errorf("Coords: got %+v", got.Coords)
	}
}

func TestGetSeriesNotFound(t *testing.T) {
	s := testDB(t)
	_, ok, err := s.GetSeries("series:NOPE")
	if err != nil || ok {
		t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
	}
}

func TestSeriesIsCompressed(t *testing.T) {
	s := testDB(t)
	e := makeEntry(2000)
	raw, _ := json.Marshal(e)
	if err := s.PutSeries("series:T2M|x", e); err != nil {
		t.Fatal(err)
	}
	stats, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range stats {
		if st.Name == "series" && st.Bytes >= int64(len(raw)) {
			t.Errorf("stored %d bytes, uncompressed JSON is %d", st.Bytes, len(raw))
		}
	}
}

func TestListAndDeleteSeries(t *testing.T) {
	s := testDB(t)
	k1 := store.SeriesKey("T2M", faisalabad, 1991, 2024)
	k2 := store.SeriesKey("WS2M", faisalabad, 1991, 2024)
	for _, k := range []string{k1, k2} {
		if err := s.PutSeries(k, makeEntry(3)); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.ListSeriesKeys("")
	if len(all) != 2 {
		t.Errorf("expected 2 keys, got %v", all)
	}
	t2m, _ := s.ListSeriesKeys("t2m")
	if len(t2m) != 1 || t2m[0] != k1 {
		t.Errorf("T2M keys: got %v", t2m)
	}

	if err := s.DeleteSeries(k1); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetSeries(k1); ok {
		t.Error("series should be deleted")
	}
}

// ─── Geocode ──────────────────────────────────────────────────────────────────

func TestGeocodeRoundTrip(t *testing.T) {
	s := testDB(t)
	p := model.Place{Query: "Faisalabad", Name: "Faisalabad, Pakistan", Lat: 31.4, Lon: 73.1}
	if err := s.PutGeocode("faisalabad", p); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetGeocode("faisalabad")
	if err != nil || !ok {
		t.Fatalf("GetGeocode: ok=%v err=%v", ok, err)
	}
	if got != p {
		t.Errorf("got %+v, want %+v", got, p)
	}
	if err := s.DeleteGeocode("faisalabad"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetGeocode("faisalabad"); ok {
		t.Error("place should be deleted")
	}
}

// ─── Reports ──────────────────────────────────────────────────────────────────

func TestReportsLifecycle(t *testing.T) {
	s := testDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "a"} {
		r := store.Report{
			ID:        id,
			Location:  "Faisalabad",
			Variable:  "T2M",
			Date:      "2024-07-19",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Payload:   json.RawMessage(`{"ok":true}`),
		}
		if err := s.PutReport(r); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListReports()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "b" {
		t.Errorf("expected oldest first, got %+v", list)
	}

	got, ok, err := s.GetReport("a")
	if err != nil || !ok {
		t.Fatalf("GetReport: ok=%v err=%v", ok, err)
	}
	if string(got.Payload) != `{"ok":true}` {
		t.Errorf("Payload: got %s", got.Payload)
	}

	existed, err := s.DeleteReport("a")
	if err != nil || !existed {
		t.Errorf("DeleteReport: existed=%v err=%v", existed, err)
	}
	existed, _ = s.DeleteReport("a")
	if existed {
		t.Error("second delete should report not existing")
	}
}

// ─── Maintenance ──────────────────────────────────────────────────────────────

func TestClearBucket(t *testing.T) {
	s := testDB(t)
	_ = s.PutGeocode("x", model.Place{Name: "x"})
	_ = s.PutSeries("series:T2M|x", makeEntry(2))

	if err := s.ClearBucket("geocode"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetGeocode("x"); ok {
		t.Error("geocode bucket should be empty")
	}
	if _, ok, _ := s.GetSeries("series:T2M|x"); !ok {
		t.Error("series bucket should be untouched")
	}
}

func TestClearBucketRejectsUnknown(t *testing.T) {
	s := testDB(t)
	err := s.ClearBucket("_meta")
	if err == nil || !strings.Contains(err.Error(), "unknown bucket") {
		t.Errorf("expected unknown bucket error, got %v", err)
	}
}

func TestClearAll(t *testing.T) {
	s := testDB(t)
	_ = s.PutGeocode("x", model.Place{Name: "x"})
	_ = s.PutSeries("series:T2M|x", makeEntry(2))
	if err := s.ClearAll(); err != nil {
		t.Fatal(err)
	}
	stats, _ := s.Stats()
	for _, st := range stats {
		if st.Count != 0 {
			t.Errorf("bucket %s still has %d rows", st.Name, st.Count)
		}
	}
}

func TestCompactKeepsData(t *testing.T) {
	s := testDB(t)
	for i := 0; i < 20; i++ {
		key := store.SeriesKey("T2M", model.Coordinates{Lat: float64(i), Lon: 0}, 1991, 2024)
		if err := s.PutSeries(key, makeEntry(500)); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.ClearBucket("series")
	_ = s.PutGeocode("keep", model.Place{Name: "keep"})

	res, err := s.Compact()
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if res.BeforeBytes == 0 || res.AfterBytes == 0 {
		t.Errorf("sizes not reported: %+v", res)
	}
	if _, ok, _ := s.GetGeocode("keep"); !ok {
		t.Error("data lost during compaction")
	}
}
