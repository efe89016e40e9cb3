package domain

import (
	"path"
	"regexp"
)

// yearlyArchiveRe matches links to full-year archives, e.g.
// "data/datagis2019.zip" or "data/datagis-rok-2020.zip".
var yearlyArchiveRe = regexp.MustCompile(`^data/datagis([0-9]{4}|-rok-[0-9]{4})\.zip$`)

// ArchiveRef identifies one remote archive and the local file it is stored as.
type ArchiveRef struct {
	Href   string // path relative to the index page
	Name   string // remote basename, also the local file name
	Latest bool   // last link on the index page, covering the current partial year
}

// NewArchiveRef builds a ref from an index page link.
func NewArchiveRef(href string) ArchiveRef {
	return ArchiveRef{Href: href, Name: path.Base(href)}
}

// IsYearlyArchive reports whether href names a full-year archive.
func IsYearlyArchive(href string) bool {
	return yearlyArchiveRe.MatchString(href)
}

// SelectArchives keeps the yearly archive links in listing order and always
// keeps the last link, which holds the latest in-progress year.
func SelectArchives(hrefs []string) []ArchiveRef {
	refs := make([]ArchiveRef, 0, len(hrefs))
	seen := make(map[string]int, len(hrefs))
	for i, h := range hrefs {
		last := i == len(hrefs)-1
		if !IsYearlyArchive(h) && !last {
			continue
		}
		ref := NewArchiveRef(h)
		if j, ok := seen[ref.Name]; ok {
			refs[j].Latest = refs[j].Latest || last
			continue
		}
		ref.Latest = last
		seen[ref.Name] = len(refs)
		refs = append(refs, ref)
	}
	return refs
}
