package archiver

import (
	"strings"
	"time"

	"github.com/starford/algiz/internal/models"
)

const (
	defaultLabel      = "(archived {date})"
	defaultDateFormat = "2006-01-02"
)

// renderLabel expands the {date} placeholder in the profile's annotation
// label template using its date format.
func renderLabel(p models.Profile, now time.Time) string {
	label := p.Label
	if label == "" {
		label = defaultLabel
	}
	layout := p.DateFormat
	if layout == "" {
		layout = defaultDateFormat
	}
	return strings.ReplaceAll(label, "{date}", now.Format(layout))
}

// renderAnnotation builds the annotation text inserted after a link,
// including its single leading space. Links found in HTML form get an HTML
// annotation so the document stays consistent; everything else gets
// markdown.
func renderAnnotation(format models.LinkFormat, archiveURL, label string) string {
	switch format {
	case models.FormatHTMLA, models.FormatHTMLImage:
		escaped := strings.ReplaceAll(archiveURL, `"`, "&quot;")
		return ` <a href="` + escaped + `">` + label + `</a>`
	default:
		return " [" + label + "](" + archiveURL + ")"
	}
}
