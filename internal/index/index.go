// Package index decodes EDGAR daily master index listings into filing
// references and builds the archive URLs they point at.
package index

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// DefaultFormType is the disclosure form this crawler targets.
const DefaultFormType = "4"

// DefaultArchiveBaseURL is the root of the EDGAR archive; both the daily
// indexes and the documents live under it.
const DefaultArchiveBaseURL = "https://www.sec.gov/Archives/"

const fieldCount = 5

// Decode scans a master index listing and returns the entries of formType in
// listing order. Rows that do not have the CIK|name|type|date|path shape are
// ignored; a row of the right shape with a malformed date fails the decode.
func Decode(text string, formType string) ([]filing.IndexEntry, error) {
	formType = strings.ToUpper(strings.TrimSpace(formType))
	if formType == "" {
		formType = DefaultFormType
	}
	var entries []filing.IndexEntry
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "|")
		if len(fields) != fieldCount || !isNumeric(fields[0]) {
			continue
		}
		if strings.ToUpper(strings.TrimSpace(fields[2])) != formType {
			continue
		}
		filed, err := filing.ParseCompactDate(strings.TrimSpace(fields[3]))
		if err != nil {
			return nil, fmt.Errorf("decode index line %d: %w", lineNo, err)
		}
		entries = append(entries, filing.IndexEntry{
			CIK:         strings.ToUpper(strings.TrimSpace(fields[0])),
			CompanyName: strings.ToUpper(strings.TrimSpace(fields[1])),
			FormType:    formType,
			Filed:       filed,
			Path:        strings.TrimSpace(fields[4]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan index: %w", err)
	}
	return entries, nil
}

// DailyIndexURL builds the master index URL for day under base
// (e.g. https://www.sec.gov/Archives/).
func DailyIndexURL(base string, day filing.Date) string {
	return fmt.Sprintf("%sedgar/daily-index/%d/%s/master.%s.idx",
		withSlash(base), day.Year, day.Quarter(), day.Compact())
}

// DocumentURL joins the archive base with an entry's relative path.
func DocumentURL(base string, path string) string {
	return withSlash(base) + strings.TrimPrefix(path, "/")
}

func withSlash(base string) string {
	if base == "" || strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}

func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
