package digest

import (
	"strconv"
	"strings"

	"daily-digest/internal/model"
)

// ExpandVars substitutes placeholders in config-provided text such as the
// delivery preface and postscript.
//
// Supported variables:
//   - {.DigestDate} => the digest date, YYYY-MM-DD
//   - {.ItemsIncluded} => number of items in the digest
//   - {.ReadTime} => estimated read time in minutes
//   - {.TimeSaved} => estimated minutes saved
func ExpandVars(s string, d model.Digest) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	r := strings.NewReplacer(
		"{.DigestDate}", d.Date,
		"{.ItemsIncluded}", strconv.Itoa(d.Stats.ItemsIncluded),
		"{.ReadTime}", strconv.Itoa(d.Stats.EstimatedReadTime),
		"{.TimeSaved}", strconv.Itoa(d.Stats.EstimatedTimeSaved),
	)
	return r.Replace(s)
}
