package ingest

import (
	"regexp"
	"strings"
	"time"

	"github.com/contaixt/contaixt/pkg/types"
)

// Record is one raw provider record as returned by the gateway.
type Record map[string]any

// ProviderSource maps gateway provider config keys to source types.
var ProviderSource = map[string]types.SourceType{
	"google-mail":  types.SourceGmail,
	"gmail":        types.SourceGmail,
	"notion":       types.SourceNotion,
	"google-drive": types.SourceGoogleDrive,
}

// Normalizer turns provider records into canonical documents. The content
// map carries separately fetched text for providers whose sync is
// metadata-only.
type Normalizer func(records []Record, contentMap map[string]string) []CanonicalDocument

// Normalizers indexes normalizers by provider config key.
var Normalizers = map[string]Normalizer{
	"google-mail":  NormalizeGmail,
	"gmail":        NormalizeGmail,
	"notion":       NormalizeNotion,
	"google-drive": NormalizeGoogleDrive,
}

var (
	htmlTag    = regexp.MustCompile(`<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
	senderAddr = regexp.MustCompile(`^(.+?)\s*<(.+?)>$`)
)

// StripHTML removes tags and collapses whitespace. Good enough for email
// bodies; it is not an HTML parser.
func StripHTML(html string) string {
	text := htmlTag.ReplaceAllString(html, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// ParseSender splits an RFC-style "Name <addr>" sender into name and
// address. A bare address yields an empty name.
func ParseSender(sender string) (name, email string) {
	if m := senderAddr.FindStringSubmatch(sender); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), `"`), strings.TrimSpace(m[2])
	}
	return "", sender
}

// NormalizeGmail maps synced email records. The body arrives inline, so the
// content map is unused.
func NormalizeGmail(records []Record, _ map[string]string) []CanonicalDocument {
	docs := make([]CanonicalDocument, 0, len(records))
	for _, rec := range records {
		name, email := ParseSender(str(rec, "sender"))

		body := str(rec, "body")
		if strings.Contains(body, "<") && strings.Contains(body, ">") {
			body = StripHTML(body)
		}

		title := str(rec, "subject")
		if title == "" {
			title = "(no subject)"
		}

		url := ""
		if threadID := str(rec, "threadId"); threadID != "" {
			url = "https://mail.google.com/mail/u/0/#inbox/" + threadID
		}

		docs = append(docs, CanonicalDocument{
			SourceType:  types.SourceGmail,
			ExternalID:  str(rec, "id"),
			URL:         url,
			Title:       title,
			AuthorName:  name,
			AuthorEmail: email,
			ContentText: body,
			CreatedAt:   parseTime(str(rec, "date")),
		})
	}
	return docs
}

// NormalizeNotion maps synced page metadata records. Page text comes from
// the content map; without it the title stands in so the document still
// exists for search.
func NormalizeNotion(records []Record, contentMap map[string]string) []CanonicalDocument {
	docs := make([]CanonicalDocument, 0, len(records))
	for _, rec := range records {
		if str(rec, "type") == "database" {
			continue
		}

		id := str(rec, "id")
		title := str(rec, "title")
		if title == "" {
			title = "(untitled)"
		}

		content := contentMap[id]
		if content == "" {
			content = title
		}

		docs = append(docs, CanonicalDocument{
			SourceType:  types.SourceNotion,
			ExternalID:  id,
			URL:         str(rec, "path"),
			Title:       title,
			ContentText: content,
			CreatedAt:   parseTime(str(rec, "last_modified")),
		})
	}
	return docs
}

const googleFolderMIME = "application/vnd.google-apps.folder"

// driveSupportedMIMEs are the file types whose text can be extracted.
var driveSupportedMIMEs = map[string]struct{}{
	"application/vnd.google-apps.document":     {},
	"application/vnd.google-apps.spreadsheet":  {},
	"application/vnd.google-apps.presentation": {},
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"text/plain":    {},
	"text/csv":      {},
	"text/markdown": {},
}

// NormalizeGoogleDrive maps synced file metadata records, skipping folders
// and unsupported file types. File text comes from the content map.
func NormalizeGoogleDrive(records []Record, contentMap map[string]string) []CanonicalDocument {
	docs := make([]CanonicalDocument, 0, len(records))
	for _, rec := range records {
		mime := str(rec, "mimeType")
		if mime == googleFolderMIME {
			continue
		}
		if _, ok := driveSupportedMIMEs[mime]; !ok {
			continue
		}

		title := str(rec, "name")
		if title == "" {
			title = "(untitled)"
		}

		var ownerName, ownerEmail string
		if owners, ok := rec["owners"].([]any); ok && len(owners) > 0 {
			if owner, ok := owners[0].(map[string]any); ok {
				ownerName = str(owner, "displayName")
				ownerEmail = str(owner, "emailAddress")
			}
		}

		docs = append(docs, CanonicalDocument{
			SourceType:  types.SourceGoogleDrive,
			ExternalID:  str(rec, "id"),
			URL:         str(rec, "webViewLink"),
			Title:       title,
			AuthorName:  ownerName,
			AuthorEmail: ownerEmail,
			ContentText: contentMap[str(rec, "id")],
			CreatedAt:   parseTime(str(rec, "modifiedTime")),
		})
	}
	return docs
}

func str(rec map[string]any, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
