package reporting

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"
)

// Paths returns the results JSON and HTML report locations for a run:
// "<dir>/<project> <reportName>-<date>.json" and the matching ".html".
func Paths(dir, project, reportName, date string) (jsonPath, htmlPath string) {
	base := filepath.Join(dir, BrandTitle(project, reportName, date))
	return base + ".json", base + ".html"
}

// BrandTitle is the heading shown on the report.
func BrandTitle(project, reportName, date string) string {
	return fmt.Sprintf("%s %s-%s", project, reportName, date)
}

// Metadata is the run-level information printed at the top of the report.
type Metadata struct {
	Started     time.Time
	Completed   time.Time
	Platform    string
	Environment string
	Browser     string
	Remote      bool
	// TimestampLayout formats Started and Completed.
	TimestampLayout string
}

// MetaEntry is one labelled metadata value.
type MetaEntry struct {
	Key   string
	Value string
}

// NewMetadata fills in the platform from the running OS.
func NewMetadata(started, completed time.Time, environment, browser string, remote bool, layout string) Metadata {
	return Metadata{
		Started:         started,
		Completed:       completed,
		Platform:        runtime.GOOS,
		Environment:     environment,
		Browser:         browser,
		Remote:          remote,
		TimestampLayout: layout,
	}
}

// Entries lists the metadata in display order.
func (m Metadata) Entries() []MetaEntry {
	layout := m.TimestampLayout
	if layout == "" {
		layout = time.DateTime
	}
	format := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	}
	executed := "Local"
	if m.Remote {
		executed = "Remote"
	}
	return []MetaEntry{
		{Key: "Test Started", Value: format(m.Started)},
		{Key: "Test Completion", Value: format(m.Completed)},
		{Key: "Platform", Value: m.Platform},
		{Key: "Environment", Value: m.Environment},
		{Key: "Browser", Value: m.Browser},
		{Key: "Executed", Value: executed},
	}
}
