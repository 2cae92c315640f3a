// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, date ranges and list limits.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"carteira/internal/core"
)

const (
	maxBodyBytes = 64 << 10
	defaultLimit = 50
	maxLimit     = 500
)

// errBadRequest marks bodies that are not well-formed JSON, as opposed to
// well-formed bodies carrying invalid ledger values.
var errBadRequest = errors.New("bad request")

// DecodeJSON reads r's body into dst. Unknown fields, trailing data and
// bodies over maxBodyBytes are rejected. Invalid amounts and dates keep their
// validation kind.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("%w: content type must be application/json", errBadRequest)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if core.KindOf(err) != "" {
			return err
		}
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		default:
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", errBadRequest)
	}
	return nil
}

// DateRange holds an inclusive range of calendar days.
type DateRange struct {
	From core.Date
	To   core.Date
}

// ParseDateRange reads from/to (YYYY-MM-DD) from the query. A missing bound
// defaults to the corresponding end of the current month.
func ParseDateRange(query url.Values, today core.Date) (DateRange, error) {
	first, last := today.MonthBounds()
	rng := DateRange{From: first, To: last}

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return DateRange{}, core.Validationf("invalid from date %q", v)
		}
		rng.From = d
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return DateRange{}, core.Validationf("invalid to date %q", v)
		}
		rng.To = d
	}
	if rng.To.Before(rng.From) {
		return DateRange{}, core.Validationf("from date must not be after to date")
	}
	return rng, nil
}

// ParseOptionalDateRange is ParseDateRange without defaults: absent bounds
// stay zero, meaning unbounded.
func ParseOptionalDateRange(query url.Values) (DateRange, error) {
	var rng DateRange
	for _, p := range []struct {
		name string
		dst  *core.Date
	}{{"from", &rng.From}, {"to", &rng.To}} {
		v := strings.TrimSpace(query.Get(p.name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return DateRange{}, core.Validationf("invalid %s date %q", p.name, v)
		}
		*p.dst = d
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return DateRange{}, core.Validationf("from date must not be after to date")
	}
	return rng, nil
}

// ParseLimit reads the limit query parameter, defaulting to defaultLimit and
// capping at maxLimit.
func ParseLimit(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, core.Validationf("limit must be a positive integer")
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

// ParseBool reads a boolean query parameter; absent means def.
func ParseBool(query url.Values, name string, def bool) (bool, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, core.Validationf("%s must be true or false", name)
	}
	return b, nil
}
