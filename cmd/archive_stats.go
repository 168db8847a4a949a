package cmd

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dhcgn/imap-to-markdown/export"
	"github.com/dhcgn/imap-to-markdown/stats"
)

var (
	reportDir string
	topN      int
)

var archiveStatsCmd = &cobra.Command{
	Use:   "archive-stats [export directory]",
	Short: "Analyse an existing export directory and show statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archiveDir := args[0]

		fmt.Println("Analyzing export directory:", archiveDir)

		categories := []string{"Folder", "From", "Month", "Attachments"}
		counter := make(map[string]map[string]int)
		for _, category := range categories {
			counter[category] = make(map[string]int)
		}

		documentCount := 0
		skippedCount := 0

		err := filepath.WalkDir(archiveDir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				return nil
			}

			frontmatter, readErr := readDocumentFrontmatter(path)
			if readErr != nil {
				skippedCount++
				return nil
			}

			documentCount++
			if len(frontmatter.Tags) > 0 {
				counter["Folder"][frontmatter.Tags[0]]++
			}
			if frontmatter.From != "" {
				counter["From"][frontmatter.From]++
			}
			if len(frontmatter.Date) >= 7 {
				counter["Month"][frontmatter.Date[:7]]++
			}
			counter["Attachments"][strconv.Itoa(len(frontmatter.Attachments))]++

			return nil
		})
		if err != nil {
			return fmt.Errorf("error walking export directory: %w", err)
		}

		fmt.Printf("Found %d documents (%d files without readable frontmatter)\n\n", documentCount, skippedCount)

		for _, category := range categories {
			fmt.Printf("Top %d %s:\n", topN, category)
			stats.PrettyPrintTop(counter[category], topN)
			fmt.Println()
		}

		if err := saveCSVReports(counter, categories, reportDir, 1000); err != nil {
			return fmt.Errorf("error saving CSV reports: %w", err)
		}

		fmt.Printf("Reports saved to directory: %s\n", reportDir)

		return nil
	},
}

func init() {
	archiveStatsCmd.Flags().StringVarP(&reportDir, "output", "o", ".", "Output directory for CSV reports")
	archiveStatsCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	rootCmd.AddCommand(archiveStatsCmd)
}

// readDocumentFrontmatter reads the YAML block between the leading "---"
// delimiters of an exported document.
func readDocumentFrontmatter(path string) (export.Frontmatter, error) {
	var frontmatter export.Frontmatter

	content, err := os.ReadFile(path)
	if err != nil {
		return frontmatter, err
	}

	parts := strings.SplitN(string(content), "---\n", 3)
	if len(parts) < 3 {
		return frontmatter, fmt.Errorf("no frontmatter in %s", path)
	}
	if err := yaml.Unmarshal([]byte(parts[1]), &frontmatter); err != nil {
		return frontmatter, fmt.Errorf("parse frontmatter of %s: %w", path, err)
	}

	return frontmatter, nil
}

func saveCSVReports(counter map[string]map[string]int, categories []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, category := range categories {
		counts := counter[category]

		filename := fmt.Sprintf("report_%s.csv", strings.ToLower(category))
		filePath := filepath.Join(dir, filename)

		file, err := os.Create(filePath)
		if err != nil {
			return err
		}

		writer := csv.NewWriter(file)

		if err := writer.Write([]string{"Value", "Count"}); err != nil {
			file.Close()
			return err
		}

		type pair struct {
			Key   string
			Value int
		}
		var pairs []pair
		for k, v := range counts {
			pairs = append(pairs, pair{k, v})
		}
		sort.Slice(pairs, func(i, j int) bool {
			return pairs[i].Value > pairs[j].Value
		})

		for i := 0; i < limit && i < len(pairs); i++ {
			record := []string{
				pairs[i].Key,
				strconv.Itoa(pairs[i].Value),
			}
			if err := writer.Write(record); err != nil {
				file.Close()
				return err
			}
		}

		writer.Flush()
		file.Close()

		if err := writer.Error(); err != nil {
			return err
		}
	}

	return nil
}
