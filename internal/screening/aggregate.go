package screening

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FilterAll disables the risk or region filter.
const FilterAll = "all"

// Row is one dashboard line: a subject and the result that represents it.
type Row struct {
	Subject Subject      `json:"subject"`
	Result  ResultRecord `json:"result"`
}

// Summary tallies rows by three-level risk. Low+Moderate+High == Total.
type Summary struct {
	Total    int `json:"total"`
	Low      int `json:"low"`
	Moderate int `json:"moderate"`
	High     int `json:"high"`
}

// LatestResultPerSubject keeps, per subject, the most recent record across
// all test types. Equal timestamps resolve to the higher risk so a risk
// signal is never dropped; remaining ties fall back to test type and id so
// the choice does not depend on input order.
func LatestResultPerSubject(records []ResultRecord) map[string]ResultRecord {
	out := make(map[string]ResultRecord, len(records))
	for _, r := range records {
		cur, ok := out[r.SubjectID]
		if !ok || supersedes(r, cur) {
			out[r.SubjectID] = r
		}
	}
	return out
}

func supersedes(a, b ResultRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if a.Risk.Rank() != b.Risk.Rank() {
		return a.Risk.Rank() > b.Risk.Rank()
	}
	if a.Test != b.Test {
		return a.Test < b.Test
	}
	return a.ID < b.ID
}

// JoinRows pairs each subject that has a result with its latest record.
// Rows are ordered newest first, then by name.
func JoinRows(subjects []Subject, latest map[string]ResultRecord) []Row {
	rows := make([]Row, 0, len(latest))
	for _, s := range subjects {
		r, ok := latest[s.ID]
		if !ok {
			continue
		}
		rows = append(rows, Row{Subject: s, Result: r})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ti, tj := rows[i].Result.CreatedAt, rows[j].Result.CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return rows[i].Subject.FullName < rows[j].Subject.FullName
	})
	return rows
}

// FilterByRiskAndRegion keeps rows matching all three filters. "all" (or
// empty) disables the risk and region filters; an empty search term matches
// everything. A three-level risk filter also matches its AQ-10 equivalent.
func FilterByRiskAndRegion(rows []Row, riskFilter, regionFilter, searchTerm string) []Row {
	risk := strings.ToLower(strings.TrimSpace(riskFilter))
	var want RiskCategory
	if risk != "" && risk != FilterAll {
		c, err := ParseRiskCategory(risk)
		if err != nil {
			return []Row{}
		}
		want = c
	}
	region := strings.TrimSpace(regionFilter)
	if strings.EqualFold(region, FilterAll) {
		region = ""
	}
	region = Fold(region)
	term := Fold(strings.TrimSpace(searchTerm))
	termDigits := ""
	// only a formatted id like "123.456.789-01" is compared digit by digit
	if d := DigitsOnly(term); d != "" && strings.Trim(term, "0123456789.-/ ") == "" {
		termDigits = d
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if want != "" && row.Result.Risk != want && row.Result.Risk.Level() != want {
			continue
		}
		if region != "" && Fold(strings.TrimSpace(row.Subject.Region)) != region {
			continue
		}
		if term != "" && !matchesSearch(row.Subject, term, termDigits) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func matchesSearch(s Subject, term, termDigits string) bool {
	if strings.Contains(Fold(s.FullName), term) {
		return true
	}
	if strings.Contains(strings.ToLower(s.NationalID), term) {
		return true
	}
	return termDigits != "" && strings.Contains(DigitsOnly(s.NationalID), termDigits)
}

// Summarize counts rows per three-level risk. Rows carrying a label outside
// the closed enum are not counted at all, so the parts always add up.
func Summarize(rows []Row) Summary {
	var s Summary
	for _, row := range rows {
		switch row.Result.Risk.Level() {
		case RiskLow:
			s.Low++
		case RiskModerate:
			s.Moderate++
		case RiskHigh:
			s.High++
		}
	}
	s.Total = s.Low + s.Moderate + s.High
	return s
}

// Regions lists the distinct subject regions in rows, compared and sorted
// folded. The first spelling seen is kept.
func Regions(rows []Row) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, row := range rows {
		r := strings.TrimSpace(row.Subject.Region)
		if r == "" {
			continue
		}
		k := Fold(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return Fold(out[i]) < Fold(out[j]) })
	return out
}

// Fold lower-cases s and strips diacritics so "JOÃO" matches "joao".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
