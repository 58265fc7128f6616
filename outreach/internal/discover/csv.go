package discover

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseCSV reads an import sheet. The header row names the columns; name,
// description, skills (pipe-separated), url, endpoint and category are
// recognized, case-insensitively.
func ParseCSV(r io.Reader) ([]Raw, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discover: csv header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Raw
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("discover: csv: %w", err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		var skills []string
		for _, s := range strings.Split(get(rec, "skills"), "|") {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
		u := get(rec, "url")
		endpoint := get(rec, "endpoint")
		if endpoint == "" {
			endpoint = u
		}
		out = append(out, Raw{
			Name:        get(rec, "name"),
			Description: get(rec, "description"),
			Skills:      skills,
			SourceURL:   u,
			WebsiteURL:  u,
			EndpointURL: endpoint,
			Category:    get(rec, "category"),
		})
	}
}
