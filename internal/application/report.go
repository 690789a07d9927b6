package application

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	mdRenderer    = goldmark.New(goldmark.WithExtensions(extension.GFM))
	htmlSanitizer = bluemonday.UGCPolicy()
)

// renderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func renderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// caseIdentity returns the label and value a case is referred to by in
// notifications.
func caseIdentity(fc model.FollowedCase) (label, value string) {
	label, value = fc.Identifier().Display()
	if strings.Trim(value, "/") == "" {
		return "Case ID", strconv.FormatInt(fc.ID, 10)
	}
	return label, value
}

// changeSubject builds the subject line of a case change notification.
func changeSubject(fc model.FollowedCase) string {
	court := fc.Court
	if court == "" {
		court = "Unknown Court"
	}
	label, value := caseIdentity(fc)
	return fmt.Sprintf("%s - Case Update Alert - %s: %s", court, label, value)
}

// changeReport renders the markdown body listing every changed field.
func changeReport(fc model.FollowedCase, changes model.ChangeSet, detectedAt time.Time) string {
	label, value := caseIdentity(fc)

	var b strings.Builder
	b.WriteString("## Case Update Alert\n\n")
	fmt.Fprintf(&b, "**Court:** %s  \n", escapeMarkdown(fc.Court))
	fmt.Fprintf(&b, "**%s:** %s  \n", label, escapeMarkdown(value))
	fmt.Fprintf(&b, "**Detected:** %s\n\n", detectedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "%d field(s) changed since the last check.\n\n", len(changes))

	b.WriteString("| Field | Change | Previous | Current |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, c := range changes {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			tableCell(c.Field), c.Type, tableCell(formatValue(c.Old)), tableCell(formatValue(c.New)))
	}
	return b.String()
}

// lowBalanceReport renders the markdown body of an admin low balance alert.
func lowBalanceReport(alert model.LowBalanceAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Alert:** an owner's %s credit has dropped below %d.\n\n", alert.Kind, alert.Threshold)
	fmt.Fprintf(&b, "- **Owner Name:** %s\n", escapeMarkdown(alert.Owner.Name))
	fmt.Fprintf(&b, "- **Owner Email:** %s\n", escapeMarkdown(alert.Owner.Email))
	fmt.Fprintf(&b, "- **Remaining Credit:** %d\n", alert.Balance)
	return b.String()
}

func formatValue(v model.Value) string {
	switch t := v.(type) {
	case nil:
		return "(none)"
	case model.String:
		return string(t)
	default:
		return model.Canonical(t)
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func tableCell(s string) string {
	s = strings.ReplaceAll(escapeMarkdown(s), "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
