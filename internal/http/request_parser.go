// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Submissions arrive as multipart forms, administrator edits as form or JSON
// bodies and bulk edits as a JSON array.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tutorkasse/internal/core"
	"tutorkasse/internal/receipts"
	"tutorkasse/internal/services"
)

// maxBulkBytes bounds the JSON body of a bulk replace.
const maxBulkBytes = 4 << 20

var errMalformedInput = errors.New("malformed request")

// ParseFormDate reads the date field of a form. ISO and German notation are
// accepted; an empty field is today. Unparseable text yields the zero Date,
// which validation rejects.
func ParseFormDate(form url.Values, now time.Time) core.Date {
	v := strings.TrimSpace(form.Get("date"))
	if v == "" {
		return core.DateOf(now)
	}
	return core.ParseDate(v)
}

// parseMoneyField reads an amount field. Empty is zero.
func parseMoneyField(form url.Values, key string) (core.Money, error) {
	cents, err := core.ParseCents(sanitizeInput(form.Get(key)))
	if err != nil {
		return core.Money{}, fmt.Errorf("%s: %w", key, err)
	}
	return core.Money{Cents: cents}, nil
}

// ParseSubmission reads a participant's entry from a multipart (or plain
// url-encoded) form. The returned closer releases the uploaded receipt and
// must be called once the submission was handled.
func ParseSubmission(w http.ResponseWriter, r *http.Request, now time.Time) (services.Submission, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, receipts.MaxUploadBytes+1<<20)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(receipts.MaxUploadBytes); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return services.Submission{}, noop, receipts.ErrTooLarge
			}
			return services.Submission{}, noop, errMalformedInput
		}
	} else if err := r.ParseForm(); err != nil {
		return services.Submission{}, noop, errMalformedInput
	}

	cost, err := parseMoneyField(r.Form, "cost")
	if err != nil {
		return services.Submission{}, noop, err
	}
	income, err := parseMoneyField(r.Form, "income")
	if err != nil {
		return services.Submission{}, noop, err
	}

	sub := services.Submission{
		Date:     ParseFormDate(r.Form, now),
		Person:   sanitizeInput(r.Form.Get("person")),
		Category: sanitizeInput(r.Form.Get("category")),
		Cost:     cost,
		Income:   income,
		Note:     sanitizeInput(r.Form.Get("note")),
	}

	file, header, err := receiptFile(r)
	if err != nil {
		return services.Submission{}, noop, err
	}
	if file == nil {
		return sub, noop, nil
	}
	sub.Receipt = file
	sub.ReceiptName = header.Filename
	return sub, func() { _ = file.Close() }, nil
}

func receiptFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	file, header, err := r.FormFile("receipt")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errMalformedInput
	}
	if header.Size == 0 {
		_ = file.Close()
		return nil, nil, nil
	}
	if !receipts.AllowedFile(header.Filename) {
		_ = file.Close()
		return nil, nil, receipts.ErrUnsupportedType
	}
	if header.Size > receipts.MaxUploadBytes {
		_ = file.Close()
		return nil, nil, receipts.ErrTooLarge
	}
	return file, header, nil
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

	p.body, p.err = io.ReadAll(r.Body)
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

	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Has reports whether key was sent at all, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
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

// ParsePatch builds an administrator patch from the fields present in the
// body. Absent fields stay unchanged; flags use the lenient cell rules.
func ParsePatch(p *RequestBodyParser) (services.Patch, error) {
	if err := p.Parse(); err != nil {
		return services.Patch{}, errMalformedInput
	}

	var patch services.Patch
	if p.Has("date") {
		d := core.ParseDate(p.Get("date"))
		if d.IsZero() {
			return services.Patch{}, core.ErrMissingDate
		}
		patch.Date = &d
	}
	if p.Has("person") {
		v := p.Get("person")
		patch.Person = &v
	}
	if p.Has("category") {
		v := p.Get("category")
		patch.Category = &v
	}
	for key, dst := range map[string]**core.Money{"cost": &patch.Cost, "income": &patch.Income} {
		if !p.Has(key) {
			continue
		}
		cents, err := core.ParseCents(p.Get(key))
		if err != nil {
			return services.Patch{}, fmt.Errorf("%s: %w", key, err)
		}
		m := core.Money{Cents: cents}
		*dst = &m
	}
	if p.Has("note") {
		v := p.Get("note")
		patch.Note = &v
	}
	if p.Has("receipt") {
		v := p.Get("receipt")
		patch.Receipt = &v
	}
	// The row editor posts all checkboxes of a row; unchecked ones are absent.
	rowForm := p.Has("row_form")
	for key, dst := range map[string]**bool{
		"reimbursed":          &patch.Reimbursed,
		"surplus_handed_over": &patch.SurplusHandedOver,
		"confirmed":           &patch.Confirmed,
	} {
		if !p.Has(key) && !rowForm {
			continue
		}
		b := core.ParseFlag(p.Get(key))
		*dst = &b
	}
	return patch, nil
}

// DecodeBulkEntries reads the JSON array of a bulk replace.
func DecodeBulkEntries(r io.Reader) ([]core.Entry, error) {
	var rows []entryJSON
	dec := json.NewDecoder(io.LimitReader(r, maxBulkBytes))
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	out := make([]core.Entry, 0, len(rows))
	for i, row := range rows {
		e, err := row.entry()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Ungültiges Anfrageformat")
	}
	return nil
}
