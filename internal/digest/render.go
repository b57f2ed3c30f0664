package digest

import (
	"bytes"
	_ "embed"
	"text/template"
	"time"

	"daily-digest/internal/model"
)

// HeadingDateLayout formats the date in the digest title.
const HeadingDateLayout = "Monday, January 2, 2006"

//go:embed digest.tmpl
var digestTpl string

var compiled = template.Must(template.New("digest").Parse(digestTpl))

type renderData struct {
	Date     string
	Sections model.DigestSections
}

// Render produces the markdown body of the digest for date. Empty sections
// are omitted.
func Render(s model.DigestSections, date time.Time) (string, error) {
	var buf bytes.Buffer
	if err := compiled.Execute(&buf, renderData{Date: date.Format(HeadingDateLayout), Sections: s}); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}
