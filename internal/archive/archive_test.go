package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeZip materializes a zip with the given member name/content pairs.
func writeZip(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create member: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write member: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

func TestListMembers(t *testing.T) {
	path := writeZip(t, map[string]string{
		"readme.txt":         "ignore",
		"registrations.csv":  "a,b\n",
		"communications.csv": "c,d\n",
	})
	names, err := ListMembers(path)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("got %d members, want 2: %v", len(names), names)
	}
	for _, n := range names {
		if !strings.HasSuffix(n, ".csv") {
			t.Errorf("non-csv member listed: %s", n)
		}
	}
}

func TestListMembersNoCSV(t *testing.T) {
	path := writeZip(t, map[string]string{"readme.txt": "x"})
	_, err := ListMembers(path)
	if !errors.Is(err, ErrNoCSVMembers) {
		t.Fatalf("got %v, want ErrNoCSVMembers", err)
	}
}

func TestSelectMember(t *testing.T) {
	names := []string{"communications.csv", "registrations.csv"}

	got, err := SelectMember(names, "")
	if err != nil || got != "communications.csv" {
		t.Errorf("empty substring: got %q, %v; want first member", got, err)
	}

	got, err = SelectMember(names, "registr")
	if err != nil || got != "registrations.csv" {
		t.Errorf("substring match: got %q, %v", got, err)
	}

	_, err = SelectMember(names, "grants")
	if err == nil {
		t.Fatal("expected error for unmatched substring")
	}
	if !strings.Contains(err.Error(), "registrations.csv") {
		t.Errorf("error should list available members: %v", err)
	}
}

func TestExtractMember(t *testing.T) {
	content := "Reg ID,Date\nR1,2025-01-01\n"
	path := writeZip(t, map[string]string{"registrations.csv": content})

	out, err := ExtractMember(path, "registrations.csv")
	if err != nil {
		t.Fatalf("ExtractMember: %v", err)
	}
	defer os.Remove(out)

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read extracted: %v", err)
	}
	if string(data) != content {
		t.Errorf("extracted content mismatch:\n%q\nwant\n%q", data, content)
	}
}

func TestExtractMemberAbsent(t *testing.T) {
	path := writeZip(t, map[string]string{"a.csv": "x"})
	if _, err := ExtractMember(path, "missing.csv"); err == nil {
		t.Fatal("expected error for absent member")
	}
}
