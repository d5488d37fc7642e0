package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath returns the object key for a published result file,
// partitioned by day so repeated exports of the same question do not
// collide across runs.
func BuildExportPath(fingerprint, format string, exportedAt time.Time) (string, error) {
	if err := validatePathComponent(fingerprint, "fingerprint"); err != nil {
		return "", err
	}
	if err := validatePathComponent(format, "format"); err != nil {
		return "", err
	}

	ts := exportedAt.UTC()
	return path.Join(
		"exports",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("query_results-%s-%02d%02d%02d.%s", fingerprint, ts.Hour(), ts.Minute(), ts.Second(), format),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
