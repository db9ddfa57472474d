package tonemap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTuning(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write tuning file: %v", err)
	}
	// Bump the mtime so change detection is deterministic even on
	// filesystems with coarse timestamp resolution.
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func tuningPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "infrared_tuning.json")
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	s := NewStore(tuningPath(t))
	p := s.LoadOrDefault()
	if p != DefaultParams() {
		t.Errorf("missing file: got %+v, want defaults %+v", p, DefaultParams())
	}
	if s.Snapshot() != DefaultParams() {
		t.Error("snapshot does not hold defaults after fallback load")
	}
}

func TestLoadOrDefaultMalformedFile(t *testing.T) {
	path := tuningPath(t)
	writeTuning(t, path, "{not json")
	s := NewStore(path)
	if p := s.LoadOrDefault(); p != DefaultParams() {
		t.Errorf("malformed file: got %+v, want defaults", p)
	}
}

func TestLoadOrDefaultValidFile(t *testing.T) {
	path := tuningPath(t)
	writeTuning(t, path, `{
		"infrared_output_value_minimum": 0.1,
		"infrared_output_value_maximum": 0.9,
		"infrared_source_scale": 2.0
	}`)
	s := NewStore(path)
	want := Params{OutputMin: 0.1, OutputMax: 0.9, SourceScale: 2.0}
	if p := s.LoadOrDefault(); p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestLoadOrDefaultUnknownFieldsIgnored(t *testing.T) {
	path := tuningPath(t)
	writeTuning(t, path, `{
		"infrared_output_value_minimum": 0.2,
		"infrared_output_value_maximum": 0.8,
		"infrared_source_scale": 1.5,
		"comment": "extra fields are fine"
	}`)
	s := NewStore(path)
	want := Params{OutputMin: 0.2, OutputMax: 0.8, SourceScale: 1.5}
	if p := s.LoadOrDefault(); p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestLoadOrDefaultMissingFieldRejected(t *testing.T) {
	path := tuningPath(t)
	writeTuning(t, path, `{"infrared_output_value_minimum": 0.1}`)
	s := NewStore(path)
	if p := s.LoadOrDefault(); p != DefaultParams() {
		t.Errorf("partial file: got %+v, want defaults", p)
	}
}

func TestPollUnchangedFile(t *testing.T) {
	path := tuningPath(t)
	writeTuning(t, path, `{
		"infrared_output_value_minimum": 0.1,
		"infrared_output_value_maximum": 0.9,
		"infrared_source_scale": 2.0
	}`)
	s := NewStore(path)
	s.LoadOrDefault()

	if _, ok := s.Poll(); ok {
		t.Error("Poll reported a change for an untouched file")
	}
}

func TestPollDetectsEdit(t *testing.T) {
	path := tuningPath(t)
	s := NewStore(path)
	s.LoadOrDefault() // missing file, defaults active

	writeTuning(t, path, `{
		"infrared_output_value_minimum": 0.3,
		"infrared_output_value_maximum": 0.95,
		"infrared_source_scale": 4.0
	}`)

	want := Params{OutputMin: 0.3, OutputMax: 0.95, SourceScale: 4.0}
	p, ok := s.Poll()
	if !ok {
		t.Fatal("Poll did not detect the edit")
	}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
	if s.Snapshot() != want {
		t.Error("snapshot not updated after successful poll")
	}
}

func TestPollMalformedEditKeepsActive(t *testing.T) {
	path := tuningPath(t)
	writeTuning(t, path, `{
		"infrared_output_value_minimum": 0.1,
		"infrared_output_value_maximum": 0.9,
		"infrared_source_scale": 2.0
	}`)
	s := NewStore(path)
	active := s.LoadOrDefault()

	writeTuning(t, path, `{"infrared_output_value_minimum": 0.1,`)

	if _, ok := s.Poll(); ok {
		t.Error("Poll adopted a malformed edit")
	}
	if s.Snapshot() != active {
		t.Errorf("active parameters changed after malformed edit: %+v", s.Snapshot())
	}
}

func TestPollInvalidEditKeepsActive(t *testing.T) {
	path := tuningPath(t)
	writeTuning(t, path, `{
		"infrared_output_value_minimum": 0.1,
		"infrared_output_value_maximum": 0.9,
		"infrared_source_scale": 2.0
	}`)
	s := NewStore(path)
	active := s.LoadOrDefault()

	// Ordering violation: min >= max.
	writeTuning(t, path, `{
		"infrared_output_value_minimum": 0.9,
		"infrared_output_value_maximum": 0.2,
		"infrared_source_scale": 2.0
	}`)

	if _, ok := s.Poll(); ok {
		t.Error("Poll adopted an out-of-range edit")
	}
	if s.Snapshot() != active {
		t.Errorf("active parameters changed after invalid edit: %+v", s.Snapshot())
	}
}

func TestPollTouchWithoutContentChange(t *testing.T) {
	path := tuningPath(t)
	writeTuning(t, path, `{
		"infrared_output_value_minimum": 0.1,
		"infrared_output_value_maximum": 0.9,
		"infrared_source_scale": 2.0
	}`)
	s := NewStore(path)
	s.LoadOrDefault()

	// Timestamp bumped, content identical: the hash fallback must report
	// no change.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, ok := s.Poll(); ok {
		t.Error("Poll reported a change for a touch without a content change")
	}
}

func TestPollFileRemoved(t *testing.T) {
	path := tuningPath(t)
	writeTuning(t, path, `{
		"infrared_output_value_minimum": 0.1,
		"infrared_output_value_maximum": 0.9,
		"infrared_source_scale": 2.0
	}`)
	s := NewStore(path)
	active := s.LoadOrDefault()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := s.Poll(); ok {
		t.Error("Poll reported a change after the file was removed")
	}
	if s.Snapshot() != active {
		t.Error("active parameters changed after the file was removed")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := tuningPath(t)
	s := NewStore(path)
	s.LoadOrDefault()

	want := Params{OutputMin: 0.15, OutputMax: 0.85, SourceScale: 5.0}
	if err := s.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Written content must flow back through the normal polling path.
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	p, ok := s.Poll()
	if !ok {
		t.Fatal("Poll did not pick up a Write")
	}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestWriteRejectsInvalid(t *testing.T) {
	s := NewStore(tuningPath(t))
	if err := s.Write(Params{OutputMin: 0.9, OutputMax: 0.1, SourceScale: 1}); err == nil {
		t.Error("Write accepted invalid parameters")
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("Write created a file despite failing validation")
	}
}
