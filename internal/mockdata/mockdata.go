// Package mockdata generates accident archives and portal pages in the same
// shape as the IZV portal, for tests and local runs.
package mockdata

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// Row returns a well-formed raw line for the accident schema. id fills the
// record id, year the date field; overrides replace fields by raw index.
func Row(id, year string, overrides map[int]string) []string {
	row := make([]string, domain.AccidentSchema.RawWidth())
	for i := range row {
		row[i] = strconv.Itoa(i % 10)
	}
	for _, c := range domain.AccidentSchema.Columns() {
		switch {
		case c.Type == domain.Float:
			row[c.Source] = "-598843,73"
		case c.Type == domain.String && c.Derive == domain.DeriveNone:
			row[c.Source] = "Žluťoučký kůň"
		}
	}
	row[0] = id
	row[3] = year + "-06-15"
	row[5] = "1430"
	for i, v := range overrides {
		row[i] = v
	}
	return row
}

// Rows returns n rows with ids "<prefix>-<i>".
func Rows(prefix, year string, n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = Row(fmt.Sprintf("%s-%d", prefix, i), year, nil)
	}
	return rows
}

// EncodeCSV writes rows the way the portal does: ';' separated, every field
// quoted, ISO-8859-2 encoded, no header.
func EncodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	enc := charmap.ISO8859_2.NewEncoder()
	for _, row := range rows {
		quoted := make([]string, len(row))
		for i, f := range row {
			quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
		line, err := enc.String(strings.Join(quoted, ";") + "\r\n")
		if err != nil {
			return nil, fmt.Errorf("encode row: %w", err)
		}
		buf.WriteString(line)
	}
	return buf.Bytes(), nil
}

// EncodeCSVMinimal writes rows with encoding/csv quoting rules.
func EncodeCSVMinimal(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(charmap.ISO8859_2.NewEncoder().Writer(&buf))
	w.Comma = ';'
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return buf.Bytes(), nil
}

// Archive builds a zip holding one CSV member per region.
func Archive(members map[domain.Region][][]string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, r := range domain.Regions {
		rows, ok := members[r]
		if !ok {
			continue
		}
		data, err := EncodeCSV(rows)
		if err != nil {
			return nil, err
		}
		f, err := zw.Create(r.CSVName())
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", r.CSVName(), err)
		}
		if _, err := f.Write(data); err != nil {
			return nil, fmt.Errorf("write %s: %w", r.CSVName(), err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// YearArchive builds an archive with n rows for each given region, dated year.
func YearArchive(year string, n int, regions ...domain.Region) ([]byte, error) {
	members := make(map[domain.Region][][]string, len(regions))
	for _, r := range regions {
		members[r] = Rows(r.Code+"-"+year, year, n)
	}
	return Archive(members)
}

// IndexHTML renders an index page with one download button per href, plus
// unrelated links that must be ignored.
func IndexHTML(hrefs []string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>IZV</title></head><body>\n")
	b.WriteString(`<a href="index.html" class="nav-link">Home</a>` + "\n")
	b.WriteString("<table>\n")
	for _, h := range hrefs {
		fmt.Fprintf(&b, "<tr><td>%s</td><td><a href=\"%s\" class=\"btn btn-sm btn-primary\">ZIP</a></td></tr>\n",
			html.EscapeString(path.Base(h)), html.EscapeString(h))
	}
	b.WriteString("</table>\n")
	b.WriteString(`<a href="data/readme.pdf" class="btn btn-sm btn-secondary">README</a>` + "\n")
	b.WriteString("</body></html>\n")
	return b.String()
}

// Portal serves an index page and its archives, counting requests.
type Portal struct {
	mu       sync.Mutex
	hrefs    []string
	archives map[string][]byte
	requests atomic.Int64
	fetched  map[string]int
	headers  http.Header
}

// NewPortal creates an empty portal.
func NewPortal() *Portal {
	return &Portal{
		archives: make(map[string][]byte),
		fetched:  make(map[string]int),
	}
}

// Add lists an archive on the index page under href, in call order.
func (p *Portal) Add(href string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.archives[href]; !ok {
		p.hrefs = append(p.hrefs, href)
	}
	p.archives[href] = data
}

// Requests returns the total number of requests served.
func (p *Portal) Requests() int64 { return p.requests.Load() }

// Fetches returns how often the archive at href was downloaded.
func (p *Portal) Fetches(href string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetched[href]
}

// LastHeaders returns the headers of the most recent request.
func (p *Portal) LastHeaders() http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headers.Clone()
}

func (p *Portal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.requests.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.headers = r.Header.Clone()

	rel := strings.TrimPrefix(r.URL.Path, "/")
	if rel == "" || rel == "index.html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(IndexHTML(p.hrefs)))
		return
	}
	data, ok := p.archives[rel]
	if !ok {
		http.NotFound(w, r)
		return
	}
	p.fetched[rel]++
	w.Header().Set("Content-Type", "application/zip")
	_, _ = w.Write(data)
}

// WriteDir writes the portal as static files under dir, so it can be served
// by any file server.
func (p *Portal) WriteDir(dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(IndexHTML(p.hrefs)), 0o600); err != nil {
		return err
	}
	for href, data := range p.archives {
		target := filepath.Join(dir, filepath.FromSlash(href))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o600); err != nil {
			return err
		}
	}
	return nil
}
