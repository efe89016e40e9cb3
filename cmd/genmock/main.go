// Command genmock generates a mock accident portal: an index page with one
// download button per archive, and zip archives holding one ISO-8859-2 CSV per
// region. The output can be written to a directory or served directly, and the
// service pointed at it with SOURCE_URL.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -years 2016-2021 -rows 25
//	go run ./cmd/genmock -serve :8000 -latest 09-2022
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "directory to write the portal to")
	serve := flag.String("serve", "", "address to serve the portal on, e.g. :8000")
	years := flag.String("years", "2016-2021", "inclusive range of yearly archives")
	rows := flag.Int("rows", 10, "rows per region per archive")
	latest := flag.String("latest", "", "optional monthly archive as MM-YYYY, listed last")
	flag.Parse()

	if *out == "" && *serve == "" {
		flag.Usage()
		return errors.New("one of -out or -serve is required")
	}
	if *rows < 0 {
		return errors.New("-rows must not be negative")
	}

	first, last, err := parseYears(*years)
	if err != nil {
		return err
	}

	portal := mockdata.NewPortal()
	for year := first; year <= last; year++ {
		y := strconv.Itoa(year)
		data, err := mockdata.YearArchive(y, *rows, domain.Regions...)
		if err != nil {
			return fmt.Errorf("building %s archive: %w", y, err)
		}
		portal.Add("data/datagis"+y+".zip", data)
		log.Printf("%s: %d regions x %d rows (%d bytes)", y, len(domain.Regions), *rows, len(data))
	}

	if *latest != "" {
		month, year, ok := strings.Cut(*latest, "-")
		if !ok || len(month) != 2 || len(year) != 4 {
			return fmt.Errorf("invalid -latest %q: want MM-YYYY", *latest)
		}
		data, err := mockdata.YearArchive(year, *rows, domain.Regions...)
		if err != nil {
			return fmt.Errorf("building %s archive: %w", *latest, err)
		}
		portal.Add("data/datagis-"+*latest+".zip", data)
		log.Printf("%s: %d regions x %d rows (%d bytes)", *latest, len(domain.Regions), *rows, len(data))
	}

	if *out != "" {
		if err := portal.WriteDir(*out); err != nil {
			return fmt.Errorf("writing portal: %w", err)
		}
		log.Printf("wrote portal: %s", *out)
	}

	if *serve != "" {
		log.Printf("serving portal on %s", *serve)
		srv := &http.Server{
			Addr:              *serve,
			Handler:           portal,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return srv.ListenAndServe()
	}
	return nil
}

// parseYears accepts "2019" or "2016-2021".
func parseYears(s string) (int, int, error) {
	lo, hi, found := strings.Cut(s, "-")
	first, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid -years %q", s)
	}
	last := first
	if found {
		if last, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return 0, 0, fmt.Errorf("invalid -years %q", s)
		}
	}
	if last < first {
		return 0, 0, fmt.Errorf("invalid -years %q: end before start", s)
	}
	return first, last, nil
}
