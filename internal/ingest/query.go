package ingest

import (
	"fmt"
	"strings"
	"time"
)

// cybersecurityCPCGlobs are the LIKE patterns selecting security patents.
var cybersecurityCPCGlobs = []string{
	"H04L%",   // Digital transmission / cryptography
	"G06F21%", // Computer security
	"H04W12%", // Wireless security
	"H04L9%",  // Cryptography mechanisms
}

const patentsTable = "`patents-public-data.patents.publications`"

// PatentQueryBuilder renders the warehouse SQL for a date window.
type PatentQueryBuilder struct {
	Countries []string
	MaxRows   int
}

// NewPatentQueryBuilder defaults to US publications and 1000 rows.
func NewPatentQueryBuilder(countries []string, maxRows int) *PatentQueryBuilder {
	if len(countries) == 0 {
		countries = []string{"US"}
	}
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &PatentQueryBuilder{Countries: countries, MaxRows: maxRows}
}

// Build renders the patent query for [start, end]. Dates are compared as
// YYYYMMDD integers, matching the warehouse schema.
func (b *PatentQueryBuilder) Build(start, end time.Time) string {
	countries := make([]string, len(b.Countries))
	for i, c := range b.Countries {
		countries[i] = "'" + c + "'"
	}

	likes := make([]string, len(cybersecurityCPCGlobs))
	for i, glob := range cybersecurityCPCGlobs {
		likes[i] = fmt.Sprintf("c.code LIKE '%s'", glob)
	}

	return fmt.Sprintf(`
SELECT
    publication_number,
    title_localized[SAFE_OFFSET(0)].text AS title,
    abstract_localized[SAFE_OFFSET(0)].text AS abstract,
    filing_date,
    publication_date,
    country_code,
    kind_code,
    ARRAY_AGG(DISTINCT assignee.name IGNORE NULLS) AS assignees,
    ARRAY_AGG(DISTINCT cpc.code IGNORE NULLS) AS cpc_codes
FROM
    %s
    LEFT JOIN UNNEST(assignee_harmonized) AS assignee
    LEFT JOIN UNNEST(cpc) AS cpc
WHERE
    filing_date BETWEEN %s AND %s
    AND country_code IN (%s)
    AND EXISTS (
        SELECT 1 FROM UNNEST(cpc) AS c
        WHERE %s
    )
GROUP BY
    publication_number, title, abstract, filing_date, publication_date, country_code, kind_code
ORDER BY publication_date DESC
LIMIT %d`,
		patentsTable,
		start.UTC().Format("20060102"),
		end.UTC().Format("20060102"),
		strings.Join(countries, ","),
		strings.Join(likes, " OR "),
		b.MaxRows,
	)
}
