package export

import (
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dhcgn/imap-to-markdown/config"
	"github.com/dhcgn/imap-to-markdown/mimetree"
)

// Frontmatter is the metadata block at the top of every exported document.
type Frontmatter struct {
	From        string   `yaml:"from"`
	To          string   `yaml:"to"`
	Date        string   `yaml:"date"`
	Subject     string   `yaml:"subject"`
	SubjectHash string   `yaml:"subject_hash"`
	Tags        []string `yaml:"tags"`
	Attachments []string `yaml:"attachments"`
}

const (
	subjectHashLen     = 6
	noSubjectSentinel  = "no-subject"
	unknownDateName    = "unknown-date"
	attachmentsHeading = "### Pieces jointes :"
)

// AlreadyExported reports whether a message with this date, participants
// and subject hash is already on disk. It lists the export directory for
// filenames matching email_<date>_<sender>*to_<recipient>*.md and checks
// each match for the literal subject hash. Best effort: a manually renamed
// file yields a false negative, never a false positive.
func AlreadyExported(dateStr, senderShort, recipientShort, subjectHash, exportDir string) bool {
	entries, err := os.ReadDir(exportDir)
	if err != nil {
		return false
	}

	pattern := fmt.Sprintf("email_%s_%s*to_%s*.md", dateStr, senderShort, recipientShort)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := filepath.Match(pattern, entry.Name())
		if err != nil || !matched {
			continue
		}
		content, err := os.ReadFile(filepath.Join(exportDir, entry.Name()))
		if err != nil {
			continue
		}
		if strings.Contains(string(content), subjectHash) {
			return true
		}
	}

	return false
}

// ExportToMarkdown converts one raw message into a Markdown document with
// YAML frontmatter, extracting attachments alongside. It returns the path
// of the written document, or "" when the message was skipped as already
// exported. Any write failure leaves the message uncounted as exported; the
// caller records it as an error and moves on.
func ExportToMarkdown(
	raw []byte,
	exportDir, baseExportDir string,
	tags []string,
	account config.Account,
	contacts *Contacts,
	logger *slog.Logger,
) (string, error) {
	root, err := mimetree.Parse(raw)
	if err != nil {
		return "", err
	}

	fromField := headerText(root, "From")
	toField := headerText(root, "To")
	dateField := root.Header.Get("Date")
	subject := headerText(root, "Subject")

	dateStr := unknownDateName
	frontmatterDate := dateField
	if parsed, err := mail.ParseDate(dateField); err == nil {
		// Normalized to UTC so the same message always yields the same
		// filename date, whatever zone it was sent from.
		utc := parsed.UTC()
		dateStr = utc.Format("2006-01-02")
		frontmatterDate = utc.Format("2006-01-02T15:04:05Z07:00")
	}

	senderShort := ShortName(fromField)
	recipientShort := ShortName(toField)

	subjectHash := noSubjectSentinel
	if subject != "" {
		subjectHash = HashPrefix(subject, subjectHashLen)
	}

	if account.SkipExisting &&
		AlreadyExported(dateStr, senderShort, recipientShort, subjectHash, exportDir) {
		return "", nil
	}

	if contacts != nil {
		analysis := Classify(root)
		for _, contact := range analysis.Contacts {
			contacts.Add(analysis.Type, contact)
		}
	}

	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	baseName := fmt.Sprintf("email_%s_%s_to_%s", dateStr, senderShort, recipientShort)
	filename := uniqueFilename(exportDir, baseName)

	body := mimetree.Body(root)
	if account.QuoteDepth > 0 {
		body = LimitQuoteDepth(body, account.QuoteDepth)
	}

	attachments, err := extractAttachments(root, attachmentOptions{
		BaseName:            baseName,
		Folder:              relativeFolder(exportDir, baseExportDir),
		BaseExportDir:       baseExportDir,
		SkipSignatureImages: account.SkipSignatureImages,
		Logger:              logger,
	})
	if err != nil {
		return "", err
	}

	frontmatter := Frontmatter{
		From:        fromField,
		To:          toField,
		Date:        frontmatterDate,
		Subject:     subject,
		SubjectHash: subjectHash,
		Tags:        tags,
		Attachments: attachments,
	}

	document, err := renderDocument(frontmatter, body, attachments)
	if err != nil {
		return "", err
	}

	path := filepath.Join(exportDir, filename)
	if err := os.WriteFile(path, []byte(document), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}

	return path, nil
}

// uniqueFilename finds the first free name for the base, appending an
// incrementing counter on collision. Existing files are never overwritten.
// Only a successful stat counts as a collision; on any stat error the name
// is treated as free, so a broken directory cannot keep the loop spinning.
func uniqueFilename(dir, baseName string) string {
	filename := baseName + ".md"
	for counter := 2; ; counter++ {
		if _, err := os.Stat(filepath.Join(dir, filename)); err != nil {
			return filename
		}
		filename = fmt.Sprintf("%s_%d.md", baseName, counter)
	}
}

func renderDocument(frontmatter Frontmatter, body string, attachments []string) (string, error) {
	meta, err := yaml.Marshal(frontmatter)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(meta)
	sb.WriteString("---\n\n")

	sb.WriteString(NormalizeLineBreaks(body))

	if len(attachments) > 0 {
		sb.WriteString("\n\n" + attachmentsHeading + "\n")
		for _, attachment := range attachments {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", filepath.Base(attachment), attachment))
		}
	}

	return sb.String(), nil
}

// relativeFolder returns the folder path of exportDir below the base export
// directory, used to mirror the folder layout under attachments/.
func relativeFolder(exportDir, baseExportDir string) string {
	rel, err := filepath.Rel(baseExportDir, exportDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(exportDir)
	}
	return rel
}
