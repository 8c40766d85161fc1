package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

var testNow = time.Unix(1_700_000_000, 0)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "quota_history.json")), dir
}

func point(ts int64, usage map[string]float64) models.QuotaSnapshot {
	p := models.NewQuotaSnapshot(ts)
	for k, v := range usage {
		p.Usage[k] = v
	}
	return p
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func timestamps(points []models.QuotaSnapshot) []int64 {
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = p.Timestamp
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoad_MissingFile(t *testing.T) {
	store, _ := newTestStore(t)

	points := store.Load(testNow)
	if points == nil || len(points) != 0 {
		t.Errorf("Load() = %v, want empty non-nil slice", points)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	store, _ := newTestStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if points := store.Load(testNow); len(points) != 0 {
		t.Errorf("Load() on corrupt file returned %d points, want 0", len(points))
	}
}

func TestLoad_FiltersRetention(t *testing.T) {
	store, _ := newTestStore(t)
	cutoff := Cutoff(testNow)
	writeJSON(t, store.Path(), []models.QuotaSnapshot{
		point(cutoff-10, nil),
		point(cutoff, nil),
		point(cutoff+1, nil),
		point(testNow.Unix(), nil),
	})

	got := timestamps(store.Load(testNow))
	want := []int64{cutoff + 1, testNow.Unix()}
	if !equalInts(got, want) {
		t.Errorf("Load() timestamps = %v, want %v", got, want)
	}
}

func TestLoad_OldFormatWithoutOptionalMaps(t *testing.T) {
	store, _ := newTestStore(t)
	raw := `[{"timestamp": 1699999000, "usage": {"a:Gemini Pro": 50}}]`
	if err := os.WriteFile(store.Path(), []byte(raw), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	points := store.Load(testNow)
	if len(points) != 1 {
		t.Fatalf("Load() returned %d points, want 1", len(points))
	}
	if points[0].ResetAt == nil || points[0].AccountNames == nil {
		t.Error("missing maps should be initialized")
	}
}

func TestAppendAndPrune(t *testing.T) {
	store, _ := newTestStore(t)
	cutoff := Cutoff(testNow)
	writeJSON(t, store.Path(), []models.QuotaSnapshot{
		point(cutoff-100, nil),
		point(cutoff+100, nil),
	})

	if err := store.AppendAndPrune(point(testNow.Unix(), map[string]float64{"a:m": 80}), testNow); err != nil {
		t.Fatalf("AppendAndPrune() failed: %v", err)
	}

	// Read the raw file to ensure the expired point was dropped on disk too.
	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var onDisk []models.QuotaSnapshot
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("history file is not a JSON array: %v", err)
	}

	for _, p := range onDisk {
		if p.Timestamp <= cutoff {
			t.Errorf("snapshot %d survived retention cutoff %d", p.Timestamp, cutoff)
		}
	}
	if got := timestamps(onDisk); !equalInts(got, []int64{cutoff + 100, testNow.Unix()}) {
		t.Errorf("on-disk timestamps = %v", got)
	}

	if _, err := os.Stat(store.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain after save")
	}
}

func TestAppendAndPrune_SameSecondReplaces(t *testing.T) {
	store, _ := newTestStore(t)
	ts := testNow.Unix()

	if err := store.AppendAndPrune(point(ts, map[string]float64{"a:m": 90}), testNow); err != nil {
		t.Fatalf("AppendAndPrune() failed: %v", err)
	}
	if err := store.AppendAndPrune(point(ts, map[string]float64{"a:m": 70}), testNow); err != nil {
		t.Fatalf("AppendAndPrune() failed: %v", err)
	}

	points := store.Load(testNow)
	if len(points) != 1 {
		t.Fatalf("Load() returned %d points, want 1", len(points))
	}
	if got := points[0].Usage["a:m"]; got != 70 {
		t.Errorf("usage = %v, want the later reading 70", got)
	}
}

func TestAppendAndPrune_WriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	// The parent of the history path is a regular file, so writes must fail.
	store := New(filepath.Join(blocker, "history.json"))

	if err := store.AppendAndPrune(point(testNow.Unix(), nil), testNow); err == nil {
		t.Error("AppendAndPrune() should surface write errors")
	}
}

func TestRecord(t *testing.T) {
	store, _ := newTestStore(t)
	accounts := []models.Account{{
		ID:          "acc",
		DisplayName: "Main",
		Quota: &models.AccountQuota{Resources: []models.ResourceQuota{
			{Name: models.ResourceGeminiPro, Percentage: 64, ResetAt: models.ResetAtPtr(testNow.Unix() + 3600)},
		}},
	}}

	if err := store.Record(accounts, testNow); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	points := store.Load(testNow)
	if len(points) != 1 {
		t.Fatalf("Load() returned %d points, want 1", len(points))
	}
	p := points[0]
	if p.Usage["acc:Gemini Pro"] != 64 || p.ResetAt["acc:Gemini Pro"] != testNow.Unix()+3600 {
		t.Errorf("recorded snapshot = %+v", p)
	}
	if p.AccountNames["acc"] != "Main" {
		t.Errorf("account name = %q, want Main", p.AccountNames["acc"])
	}
}

func TestMergeExternal_Idempotent(t *testing.T) {
	store, dir := newTestStore(t)
	bufferPath := filepath.Join(dir, "quota_buffer.json")
	base := testNow.Unix()

	if err := store.AppendAndPrune(point(base-600, nil), testNow); err != nil {
		t.Fatalf("AppendAndPrune() failed: %v", err)
	}

	buffer := []models.QuotaSnapshot{point(base-300, nil), point(base-900, nil), point(base-600, nil)}
	writeJSON(t, bufferPath, buffer)

	added, err := store.MergeExternal(bufferPath, testNow)
	if err != nil {
		t.Fatalf("MergeExternal() failed: %v", err)
	}
	if added != 2 {
		t.Errorf("first merge added %d, want 2", added)
	}
	if _, err := os.Stat(bufferPath); !os.IsNotExist(err) {
		t.Error("buffer should be deleted after merge")
	}

	first := timestamps(store.Load(testNow))
	want := []int64{base - 900, base - 600, base - 300}
	if !equalInts(first, want) {
		t.Errorf("after merge timestamps = %v, want %v", first, want)
	}

	writeJSON(t, bufferPath, buffer)
	added, err = store.MergeExternal(bufferPath, testNow)
	if err != nil {
		t.Fatalf("second MergeExternal() failed: %v", err)
	}
	if added != 0 {
		t.Errorf("second merge added %d, want 0", added)
	}
	if second := timestamps(store.Load(testNow)); !equalInts(second, first) {
		t.Errorf("second merge changed history: %v, want %v", second, first)
	}
}

func TestMergeExternal_OrderCommutes(t *testing.T) {
	base := testNow.Unix()
	bufA := []models.QuotaSnapshot{point(base-100, nil), point(base-300, nil)}
	bufB := []models.QuotaSnapshot{point(base-200, nil), point(base-300, nil)}

	run := func(first, second []models.QuotaSnapshot) []int64 {
		store, dir := newTestStore(t)
		bufferPath := filepath.Join(dir, "buffer.json")
		for _, buf := range [][]models.QuotaSnapshot{first, second} {
			writeJSON(t, bufferPath, buf)
			if _, err := store.MergeExternal(bufferPath, testNow); err != nil {
				t.Fatalf("MergeExternal() failed: %v", err)
			}
		}
		return timestamps(store.Load(testNow))
	}

	ab := run(bufA, bufB)
	ba := run(bufB, bufA)
	if !equalInts(ab, ba) {
		t.Errorf("merge order matters: %v vs %v", ab, ba)
	}
}

func TestMergeExternal_EmptyBuffer(t *testing.T) {
	store, dir := newTestStore(t)
	bufferPath := filepath.Join(dir, "quota_buffer.json")
	if err := os.WriteFile(bufferPath, []byte("[]"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	added, err := store.MergeExternal(bufferPath, testNow)
	if err != nil {
		t.Fatalf("MergeExternal() failed: %v", err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}
	if _, err := os.Stat(bufferPath); !os.IsNotExist(err) {
		t.Error("empty buffer should still be deleted")
	}
}

func TestMergeExternal_MissingBuffer(t *testing.T) {
	store, dir := newTestStore(t)

	added, err := store.MergeExternal(filepath.Join(dir, "nope.json"), testNow)
	if err != nil || added != 0 {
		t.Errorf("MergeExternal() = %d, %v; want 0, nil", added, err)
	}
}

func TestMergeExternal_CorruptBuffer(t *testing.T) {
	store, dir := newTestStore(t)
	bufferPath := filepath.Join(dir, "quota_buffer.json")
	if err := os.WriteFile(bufferPath, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := store.MergeExternal(bufferPath, testNow); err == nil {
		t.Error("MergeExternal() should fail on a corrupt buffer")
	}
	if _, err := os.Stat(bufferPath); err != nil {
		t.Error("corrupt buffer should be left for inspection")
	}
}

func TestMergeExternal_DropsExpired(t *testing.T) {
	store, dir := newTestStore(t)
	bufferPath := filepath.Join(dir, "quota_buffer.json")
	cutoff := Cutoff(testNow)
	buffer := []models.QuotaSnapshot{point(cutoff-1, nil), point(cutoff+1, nil)}
	writeJSON(t, bufferPath, buffer)

	added, err := store.MergeExternal(bufferPath, testNow)
	if err != nil {
		t.Fatalf("MergeExternal() failed: %v", err)
	}
	if added != 1 {
		t.Errorf("first merge added = %d, want 1", added)
	}
	if got := timestamps(store.Load(testNow)); !equalInts(got, []int64{cutoff + 1}) {
		t.Errorf("timestamps = %v, want only the in-window point", got)
	}

	writeJSON(t, bufferPath, buffer)
	added, err = store.MergeExternal(bufferPath, testNow)
	if err != nil {
		t.Fatalf("second MergeExternal() failed: %v", err)
	}
	if added != 0 {
		t.Errorf("second merge of the same buffer added = %d, want 0", added)
	}
}
