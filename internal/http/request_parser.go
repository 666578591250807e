// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// It reduces code duplication by providing reusable functions for common
// form parsing, period extraction, and input sanitization patterns.

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
	"time"

	"github.com/gorilla/mux"

	"installments/internal/core"
)

// maxBodyBytes bounds form and JSON bodies.
const maxBodyBytes = 64 << 10

// errBadID marks a malformed numeric identifier in a path or form.
var errBadID = errors.New("invalid id")

// ParsePeriodParams reads the viewed month from query parameters. It accepts
// period=YYYY-MM or year/month pairs and falls back to the month of now for
// anything missing or malformed.
func ParsePeriodParams(query url.Values, now time.Time) core.Period {
	current := core.PeriodOf(now)

	if v := strings.TrimSpace(query.Get("period")); v != "" {
		if p, err := core.ParsePeriod(v); err == nil {
			return p
		}
	}

	p := current
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			p.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			p.Month = m
		}
	}
	if p.Validate() != nil {
		return current
	}
	return p
}

// ParseOptionalID reads a positive id from query or form values. Empty means
// no filter; "0" and "all" are treated the same way.
func ParseOptionalID(values url.Values, key string) (*int64, error) {
	return optionalID(strings.TrimSpace(values.Get(key)))
}

func optionalID(v string) (*int64, error) {
	if v == "" || v == "0" || strings.EqualFold(v, "all") {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return nil, fmt.Errorf("%w: %q", errBadID, v)
	}
	return &id, nil
}

// PathID reads a positive integer route variable.
func PathID(r *http.Request, name string) (int64, error) {
	v := mux.Vars(r)[name]
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %s=%q", errBadID, name, v)
	}
	return id, nil
}

// PathInt reads an integer route variable.
func PathInt(r *http.Request, name string) (int, error) {
	v := mux.Vars(r)[name]
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Money parses key as a positive decimal amount.
func (p *RequestBodyParser) Money(key string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(p.Get(key))
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// Int parses key as an integer. A missing value is an error.
func (p *RequestBodyParser) Int(key string) (int, error) {
	v := p.Get(key)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

// ID parses key as a required positive id.
func (p *RequestBodyParser) ID(key string) (int64, error) {
	id, err := optionalID(p.Get(key))
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, fmt.Errorf("%w: %s is required", errBadID, key)
	}
	return *id, nil
}

// OptionalID parses key as an id that may be left empty.
func (p *RequestBodyParser) OptionalID(key string) (*int64, error) {
	return optionalID(p.Get(key))
}

// Bool reads checkbox-style values: "on", "true", "1", "yes".
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// Period parses key as "YYYY-MM".
func (p *RequestBodyParser) Period(key string) (core.Period, error) {
	return core.ParsePeriod(p.Get(key))
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
