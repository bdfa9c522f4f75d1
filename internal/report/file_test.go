package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/models"
)

func buildTestReport(t *testing.T) *Report {
	t.Helper()
	cat := catalog.MustDefault()
	sess, decisions := completedSession(t, cat, models.ContextPhilosophy,
		models.ChoiceCommunicate, models.ChoiceCommunicate, models.ChoiceSilence, models.ChoiceEscalate)
	r, err := Build(cat, sess, decisions, exportTime)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return r
}

func TestDefaultFilename(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2026, 5, 3, 23, 30, 0, 0, loc)

	tests := []struct {
		name    string
		session string
		want    string
	}{
		{"uuid", "5f0c2a9e-1b7d-4c1e-9a53-0d2f7b6e8c41", "dark_forest_results_2026-05-04_5f0c2a9e-1b7d-4c1e-9a53-0d2f7b6e8c41"},
		{"path characters dropped", "../a/b", "dark_forest_results_2026-05-04_ab"},
		{"no session", "", "dark_forest_results_2026-05-04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultFilename(ts, tt.session); got != tt.want+".json" {
				t.Errorf("DefaultFilename() = %q, want %q", got, tt.want+".json")
			}
			if got := ArchiveFilename(ts, tt.session); got != tt.want+".json.gz" {
				t.Errorf("ArchiveFilename() = %q, want %q", got, tt.want+".json.gz")
			}
		})
	}
}

func TestWrite_ReadRoundTrip(t *testing.T) {
	r := buildTestReport(t)
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	path := filepath.Join(dir, DefaultFilename(r.ExportedAt, r.SessionID))

	if err := Write(path, r); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain after Write")
	}

	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat(dir) error = %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0700 {
		t.Errorf("report dir permissions = %o, want 0700", perm)
	}
	fileInfo, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(path) error = %v", err)
	}
	if perm := fileInfo.Mode().Perm(); perm != 0600 {
		t.Errorf("report file permissions = %o, want 0600", perm)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"detailed_decisions"`) {
		t.Error("report JSON should contain detailed_decisions")
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.SessionID != r.SessionID || len(got.Decisions) != len(r.Decisions) {
		t.Errorf("Read() = %+v, want session %s with %d decisions", got, r.SessionID, len(r.Decisions))
	}
	if got.Profile != r.Profile {
		t.Errorf("Profile = %+v, want %+v", got.Profile, r.Profile)
	}
}

func TestWrite_NilReport(t *testing.T) {
	if err := Write(filepath.Join(t.TempDir(), "r.json"), nil); err == nil {
		t.Error("Write(nil) should fail")
	}
}

func TestExport(t *testing.T) {
	r := buildTestReport(t)

	t.Run("default name in dir", func(t *testing.T) {
		dir := t.TempDir()
		path, err := Export(r, ExportOptions{Dir: dir})
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if path != filepath.Join(dir, "dark_forest_results_2026-05-04_"+r.SessionID+".json") {
			t.Errorf("Export() path = %s", path)
		}
		if _, err := Read(path); err != nil {
			t.Errorf("Read() error = %v", err)
		}
	})

	t.Run("same day sessions kept apart", func(t *testing.T) {
		dir := t.TempDir()
		other := *r
		other.SessionID = "sess-2"

		first, err := Export(r, ExportOptions{Dir: dir})
		if err != nil {
			t.Fatal(err)
		}
		second, err := Export(&other, ExportOptions{Dir: dir})
		if err != nil {
			t.Fatal(err)
		}
		if first == second {
			t.Fatalf("both sessions exported to %s", first)
		}
		got, err := Read(first)
		if err != nil {
			t.Fatal(err)
		}
		if got.SessionID != r.SessionID {
			t.Errorf("first report now holds session %s", got.SessionID)
		}
	})

	t.Run("compressed", func(t *testing.T) {
		dir := t.TempDir()
		path, err := Export(r, ExportOptions{Dir: dir, Compress: true, AllowedDirs: []string{dir}})
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if !strings.HasSuffix(path, ".json.gz") {
			t.Errorf("Export() path = %s, want .json.gz suffix", path)
		}
		if _, err := Verify(path); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
	})

	t.Run("outside allowed dirs", func(t *testing.T) {
		allowed := t.TempDir()
		outside := t.TempDir()
		_, err := Export(r, ExportOptions{Path: filepath.Join(outside, "r.json"), AllowedDirs: []string{allowed}})
		if err == nil {
			t.Fatal("Export() should reject a path outside the allowed dirs")
		}
		if _, statErr := os.Stat(filepath.Join(outside, "r.json")); !os.IsNotExist(statErr) {
			t.Error("rejected export should not create a file")
		}
	})
}
