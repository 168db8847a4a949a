package stats

import "testing"

func TestAddAndString(t *testing.T) {
	var s ExportStats
	s.Add(ExportStats{Exported: 2, Skipped: 1})
	s.Add(ExportStats{Exported: 1, Errors: 3})

	if s.Exported != 3 || s.Skipped != 1 || s.Errors != 3 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if got, want := s.String(), "3 exported, 1 skipped, 3 errors"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTotalAndFolders(t *testing.T) {
	perFolder := map[string]ExportStats{
		"INBOX": {Exported: 5},
		"Sent":  {Exported: 2, Errors: 1},
		"Draft": {Skipped: 4},
	}

	total := Total(perFolder)
	if total.Exported != 7 || total.Skipped != 4 || total.Errors != 1 {
		t.Fatalf("unexpected total: %+v", total)
	}

	names := Folders(perFolder)
	want := []string{"Draft", "INBOX", "Sent"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Folders() = %v, want %v", names, want)
		}
	}
}
