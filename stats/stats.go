package stats

import (
	"fmt"
	"sort"
)

// ExportStats counts the outcome of every message processed in one folder run.
type ExportStats struct {
	Exported int
	Skipped  int
	Errors   int
}

// Add merges another stats value into this one.
func (s *ExportStats) Add(other ExportStats) {
	s.Exported += other.Exported
	s.Skipped += other.Skipped
	s.Errors += other.Errors
}

func (s ExportStats) String() string {
	return fmt.Sprintf("%d exported, %d skipped, %d errors", s.Exported, s.Skipped, s.Errors)
}

// LogAttrs returns the stats as slog key/value pairs.
func (s ExportStats) LogAttrs() []any {
	return []any{
		"exported", s.Exported,
		"skipped", s.Skipped,
		"errors", s.Errors,
	}
}

// Total sums per-folder stats into an account-level value.
func Total(perFolder map[string]ExportStats) ExportStats {
	var total ExportStats
	for _, s := range perFolder {
		total.Add(s)
	}
	return total
}

// Folders returns the folder names of a result map in sorted order, so
// summaries print deterministically.
func Folders(perFolder map[string]ExportStats) []string {
	names := make([]string, 0, len(perFolder))
	for name := range perFolder {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	type pair struct {
		Key   string
		Value int
	}

	var pairs []pair
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Value > pairs[j].Value
	})

	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Printf("%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}
