package domain

import (
	"fmt"
	"strings"
)

// Region is a Czech administrative region as it appears in the archives.
type Region struct {
	Code   string // three-letter code, e.g. "PHA"
	Number string // two-digit code used for the CSV member name, e.g. "00"
}

// CSVName is the name of the region's member file inside an archive.
func (r Region) CSVName() string { return r.Number + ".csv" }

// Regions lists the 14 regions in their canonical order. The numeric code
// space is not contiguous (08–13 are unused).
var Regions = []Region{
	{Code: "PHA", Number: "00"},
	{Code: "STC", Number: "01"},
	{Code: "JHC", Number: "02"},
	{Code: "PLK", Number: "03"},
	{Code: "ULK", Number: "04"},
	{Code: "HKK", Number: "05"},
	{Code: "JHM", Number: "06"},
	{Code: "MSK", Number: "07"},
	{Code: "OLK", Number: "14"},
	{Code: "ZLK", Number: "15"},
	{Code: "VYS", Number: "16"},
	{Code: "PAK", Number: "17"},
	{Code: "LBK", Number: "18"},
	{Code: "KVK", Number: "19"},
}

// LookupRegion resolves a three-letter code, case-insensitively.
func LookupRegion(code string) (Region, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	for _, r := range Regions {
		if r.Code == c {
			return r, nil
		}
	}
	return Region{}, fmt.Errorf("%w: %q", ErrUnknownRegion, code)
}

// RegionCodes returns the codes of all known regions in canonical order.
func RegionCodes() []string {
	codes := make([]string, len(Regions))
	for i, r := range Regions {
		codes[i] = r.Code
	}
	return codes
}
