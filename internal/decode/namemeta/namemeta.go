// Package namemeta decodes dataset metadata from underscore-delimited file names
// such as Rhone_20180715_DOP_LV03.tif or Rhone_2018_DSM_LV95_LN02.xyz.
package namemeta

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

var ErrUndecodableDate = errors.New("undecodable acquisition date")

// Files with only a year in the name are dated to September 1st.
const (
	fallbackMonth = time.September
	fallbackDay   = 1
)

type Fields struct {
	Glacier       string
	DateCoded     string
	Product       string
	HorizontalCRS string
	VerticalCRS   string
}

// Result carries the decoded metadata; DateFallback is set when only the year could be read.
type Result struct {
	Metadata     model.DatasetMetadata
	DateFallback bool
	DateErr      error
}

// Split returns the raw name tokens. Names that do not have exactly four or
// five tokens yield empty fields.
func Split(baseName string) Fields {
	stem := baseName
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	parts := strings.Split(stem, "_")

	var f Fields
	switch len(parts) {
	case 4, 5:
		f.Glacier = parts[0]
		f.DateCoded = parts[1]
		f.Product = strings.ToUpper(parts[2])
		f.HorizontalCRS = strings.ToUpper(parts[3])
		if len(parts) == 5 {
			f.VerticalCRS = strings.ToUpper(parts[4])
		}
	}
	return f
}

func Decode(baseName string) (Result, error) {
	f := Split(baseName)

	date, fallback, dateErr := ParseDate(f.DateCoded)
	if date.IsZero() {
		return Result{DateErr: dateErr}, fmt.Errorf("decode %q: %w", baseName, dateErr)
	}

	return Result{
		Metadata: model.DatasetMetadata{
			Glacier:         f.Glacier,
			AcquisitionDate: date,
			Year:            date.Year(),
			Product:         f.Product,
			HorizontalCRS:   f.HorizontalCRS,
			VerticalCRS:     f.VerticalCRS,
		},
		DateFallback: fallback,
		DateErr:      dateErr,
	}, nil
}

// ParseDate reads a YYYYMMDD date. When that fails the first four characters are
// taken as the year and the date is set to September 1st of that year; the
// strict parse error is returned alongside so callers can log it.
func ParseDate(coded string) (date time.Time, fallback bool, err error) {
	d, strictErr := parseStrict(coded)
	if strictErr == nil {
		return d, false, nil
	}

	if len(coded) < 4 || !allDigits(coded[:4]) {
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrUndecodableDate, coded)
	}
	year, err := strconv.Atoi(coded[:4])
	if err != nil || year < 1 {
		return time.Time{}, false, fmt.Errorf("%w: year %q", ErrUndecodableDate, coded[:4])
	}
	return time.Date(year, fallbackMonth, fallbackDay, 0, 0, 0, 0, time.UTC), true, strictErr
}

func parseStrict(coded string) (time.Time, error) {
	if len(coded) != 8 || !allDigits(coded) {
		return time.Time{}, fmt.Errorf("date %q is not YYYYMMDD", coded)
	}
	d, err := time.Parse("20060102", coded)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", coded, err)
	}
	return d, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
