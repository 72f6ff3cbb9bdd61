package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestRecordAndRotate(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	first := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	if err := l.Record(Entry{Time: first, Type: "path", RequestID: "a", Found: true, Size: 4}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(Entry{Time: first.Add(time.Minute), Type: "cell", RequestID: "b"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(Entry{Time: second, Type: "reachable", RequestID: "c", Size: 19}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := readEntries(t, l.PathForHour("2026-03-01-10"))
	if len(got) != 2 || got[0].RequestID != "a" || !got[0].Found || got[1].Type != "cell" {
		t.Fatalf("unexpected first hour entries %+v", got)
	}
	got = readEntries(t, l.PathForHour("2026-03-01-11"))
	if len(got) != 1 || got[0].Size != 19 {
		t.Fatalf("unexpected second hour entries %+v", got)
	}
}

func TestRecordStampsTime(t *testing.T) {
	l := New(t.TempDir())
	fixed := time.Date(2026, 5, 2, 7, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	if err := l.Record(Entry{Type: "ping"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got := readEntries(t, l.PathForHour("2026-05-02-07"))
	if len(got) != 1 || !got[0].Time.Equal(fixed) {
		t.Fatalf("expected stamped entry, got %+v", got)
	}
}

func TestNilLog(t *testing.T) {
	var l *Log
	if err := l.Record(Entry{Type: "cell"}); err != nil {
		t.Fatalf("nil log must discard: %v", err)
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("nil flush: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
