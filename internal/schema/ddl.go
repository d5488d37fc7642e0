package schema

import (
	"errors"
	"regexp"
	"strings"
)

var ErrNoStatements = errors.New("schema contains no CREATE TABLE statements")

var (
	ddlBlockPattern  = regexp.MustCompile(`(?is)CREATE\s+TABLE.+?;`)
	tableNamePattern = regexp.MustCompile("(?i)CREATE\\s+TABLE\\s+[`\"\\[]?(\\w+)")
)

// ExtractDDL pulls every table-definition statement out of a schema
// script, up to and including the terminating semicolon, and returns
// them joined by blank lines. Data statements (INSERT, indexes and so
// on) are deliberately left behind.
func ExtractDDL(script string) (string, error) {
	blocks := ddlBlockPattern.FindAllString(script, -1)
	if len(blocks) == 0 {
		return "", ErrNoStatements
	}
	return strings.Join(blocks, "\n\n"), nil
}

// FirstTableName returns the name of the first table the script
// creates, unquoting backticks, double quotes and brackets.
func FirstTableName(script string) (string, bool) {
	match := tableNamePattern.FindStringSubmatch(script)
	if match == nil {
		return "", false
	}
	return match[1], true
}
