package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dhcgn/imap-to-markdown/mimetree"
)

type attachmentOptions struct {
	// BaseName is the message's document name without extension; attachment
	// files are prefixed with it.
	BaseName string
	// Folder is the folder path relative to the base export directory.
	Folder string
	// BaseExportDir is the account's export root; recorded attachment paths
	// are relative to it.
	BaseExportDir       string
	SkipSignatureImages bool
	Logger              *slog.Logger
}

const attachmentHashLen = 8

// extractAttachments walks the full message tree, writes every surviving
// attachment under <base>/attachments/<folder>/ and returns the recorded
// document-relative paths in discovery order. A write failure aborts the
// whole message so a document is never committed with a wrong attachment
// list.
func extractAttachments(root *mimetree.Part, opts attachmentOptions) ([]string, error) {
	attachmentsDir := filepath.Join(opts.BaseExportDir, "attachments", opts.Folder)
	if err := os.MkdirAll(attachmentsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments directory: %w", err)
	}

	recorded := []string{}
	if err := walkAttachments(root, attachmentsDir, opts, &recorded); err != nil {
		return nil, err
	}
	return recorded, nil
}

func walkAttachments(parent *mimetree.Part, dir string, opts attachmentOptions, recorded *[]string) error {
	for _, part := range parent.Children {
		disposition := part.ContentDisposition()

		// A leaf with no disposition is body material, not an attachment.
		if disposition == "" && len(part.Children) == 0 {
			continue
		}

		// Only parts that yield a filename are written; a disposition with no
		// name to write under is body material from the walker's view.
		if filename := mimetree.Filename(part); filename != "" {
			if err := writeAttachment(part, filename, dir, opts, recorded); err != nil {
				return err
			}
		}

		// Containers are traversed regardless of whether they were accepted
		// themselves, so deeply nested multiparts are fully covered.
		if len(part.Children) > 0 {
			if err := walkAttachments(part, dir, opts, recorded); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeAttachment(part *mimetree.Part, filename, dir string, opts attachmentOptions, recorded *[]string) error {
	contentType := part.Header.Get("Content-Type")
	payload := part.Body

	if opts.SkipSignatureImages &&
		isSignatureImage(filename, contentType, len(payload), part.ContentDisposition()) {
		if opts.Logger != nil {
			opts.Logger.Debug("skipping signature image", "filename", filename, "size", len(payload))
		}
		return nil
	}

	if len(payload) == 0 {
		if opts.Logger != nil {
			opts.Logger.Debug("skipping attachment with empty payload", "filename", filename)
		}
		return nil
	}

	fullName := fmt.Sprintf("%s_%s_%s",
		opts.BaseName, HashPrefix(filename, attachmentHashLen), SanitizeFilename(filename))
	path := filepath.Join(dir, fullName)

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write attachment %s: %w", fullName, err)
	}

	relative, err := filepath.Rel(opts.BaseExportDir, path)
	if err != nil {
		relative = path
	}
	*recorded = append(*recorded, filepath.ToSlash(relative))

	return nil
}
