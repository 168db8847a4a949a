package export

import (
	"regexp"
	"strings"

	"github.com/dhcgn/imap-to-markdown/mimetree"
)

// EmailType is the communication category of a message.
type EmailType int

const (
	TypeUnknown EmailType = iota
	TypeDirect
	TypeGroup
	TypeNewsletter
	TypeMailingList
)

func (t EmailType) String() string {
	switch t {
	case TypeDirect:
		return "direct"
	case TypeGroup:
		return "group"
	case TypeNewsletter:
		return "newsletter"
	case TypeMailingList:
		return "mailing_list"
	default:
		return "unknown"
	}
}

// Label returns the human-readable form used in the contacts export.
func (t EmailType) Label() string {
	switch t {
	case TypeDirect:
		return "Direct"
	case TypeGroup:
		return "Group"
	case TypeNewsletter:
		return "Newsletter"
	case TypeMailingList:
		return "Mailing List"
	default:
		return "Unknown"
	}
}

// EmailAnalysis is the classification result for one message.
type EmailAnalysis struct {
	Type     EmailType
	From     string
	To       []string
	Cc       []string
	Contacts []string
	Subject  string
}

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// ExtractEmails pulls bare, lowercased email addresses out of a header
// value, tolerating display names and comma-separated lists. Duplicates are
// removed, order is preserved.
func ExtractEmails(field string) []string {
	if field == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var addresses []string
	for _, match := range emailRe.FindAllString(field, -1) {
		address := strings.ToLower(match)
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		addresses = append(addresses, address)
	}
	return addresses
}

// Classify derives the message type and the involved contact addresses.
// Decision order matters: a group message with a newsletter subject is
// still a group message.
func Classify(root *mimetree.Part) EmailAnalysis {
	fromField := headerText(root, "From")
	toField := headerText(root, "To")
	ccField := headerText(root, "Cc")
	subject := headerText(root, "Subject")

	fromEmails := ExtractEmails(fromField)
	toEmails := ExtractEmails(toField)
	ccEmails := ExtractEmails(ccField)

	subjectLower := strings.ToLower(subject)

	var emailType EmailType
	switch {
	case len(toEmails) > 1 || len(ccEmails) > 1:
		emailType = TypeGroup
	case strings.Contains(subjectLower, "newsletter"),
		strings.Contains(subjectLower, "bulletin"),
		strings.Contains(subjectLower, "digest"):
		emailType = TypeNewsletter
	case root.Header.Get("List-Id") != "" || root.Header.Get("List-Unsubscribe") != "":
		emailType = TypeMailingList
	case len(fromEmails) == 1 && len(toEmails) == 1:
		emailType = TypeDirect
	default:
		emailType = TypeUnknown
	}

	seen := make(map[string]struct{})
	var contacts []string
	for _, address := range append(append(append([]string{}, fromEmails...), toEmails...), ccEmails...) {
		if address == "" {
			continue
		}
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		contacts = append(contacts, address)
	}

	from := ""
	if len(fromEmails) > 0 {
		from = fromEmails[0]
	}

	return EmailAnalysis{
		Type:     emailType,
		From:     from,
		To:       toEmails,
		Cc:       ccEmails,
		Contacts: contacts,
		Subject:  subject,
	}
}

// headerText returns a header value with RFC 2047 encoded words decoded.
func headerText(p *mimetree.Part, key string) string {
	if text, err := p.Header.Text(key); err == nil {
		return text
	}
	return mimetree.DecodeWord(p.Header.Get(key))
}
