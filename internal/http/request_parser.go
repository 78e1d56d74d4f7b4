package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finetrail/internal/core"
)

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

// RequestBodyParser reads a JSON object or a form encoded body once and
// exposes its fields as strings.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r, at most maxBodyBytes of it.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body. Bodies starting with '{' are JSON, everything else
// is treated as form data. Decoding errors wrap errBadRequest.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = badRequest(p.err.Error())
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = badRequest("malformed JSON body")
			return p.err
		}
		return nil
	}

	var err error
	if p.formData, err = url.ParseQuery(string(trimmed)); err != nil {
		p.err = badRequest("malformed form body")
	}
	return p.err
}

// Get returns the sanitized string value of key, or "".
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetList returns the values of key. JSON arrays, repeated form fields and
// comma separated strings are all accepted.
func (p *RequestBodyParser) GetList(key string) []string {
	var raw []string
	switch {
	case p.jsonData != nil:
		switch v := p.jsonData[key].(type) {
		case []any:
			for _, item := range v {
				raw = append(raw, stringValue(item))
			}
		case nil:
		default:
			raw = strings.Split(stringValue(v), ",")
		}
	case p.formData != nil:
		for _, v := range p.formData[key] {
			raw = append(raw, strings.Split(v, ",")...)
		}
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = sanitizeInput(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func invalidField(field string, err error) error {
	return &core.ValidationError{Field: field, Err: err}
}

func decodeWallet(p *RequestBodyParser) (core.Wallet, error) {
	w := core.Wallet{
		Name:     p.Get("name"),
		Type:     core.WalletType(strings.ToLower(p.Get("type"))),
		Currency: p.Get("currency"),
		Color:    p.Get("color"),
		Icon:     p.Get("icon"),
	}
	if raw := p.Get("initialAmount"); raw != "" {
		amount, err := core.ParseAmount(raw)
		if err != nil {
			return w, invalidField("initialAmount", err)
		}
		w.InitialAmount = amount
	}
	return w, nil
}

func decodeCategory(p *RequestBodyParser) core.Category {
	return core.Category{
		Name:  p.Get("name"),
		Type:  core.TransactionType(strings.ToLower(p.Get("type"))),
		Color: p.Get("color"),
		Emoji: p.Get("emoji"),
	}
}

// decodeTransaction reads a transaction. A missing date means now.
func decodeTransaction(p *RequestBodyParser, now time.Time) (core.Transaction, error) {
	tx := core.Transaction{
		WalletID:    p.Get("walletId"),
		CategoryID:  p.Get("categoryId"),
		Type:        core.TransactionType(strings.ToLower(p.Get("type"))),
		Description: p.Get("description"),
		Tags:        p.GetList("tags"),
	}

	amount, err := core.ParsePositiveAmount(p.Get("amount"))
	if err != nil {
		return tx, invalidField("amount", err)
	}
	tx.Amount = amount

	if tx.Date, err = parseTimestamp(p.Get("date"), now); err != nil {
		return tx, invalidField("date", err)
	}
	return tx, nil
}

// parseTimestamp accepts RFC 3339 timestamps and YYYY-MM-DD days.
func parseTimestamp(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return time.Time{}, core.ErrInvalidDate
	}
	return d.Time, nil
}

func decodeBudget(p *RequestBodyParser) (core.Budget, error) {
	b := core.Budget{
		CategoryID: p.Get("categoryId"),
		Period:     p.Get("period"),
	}

	amount, err := core.ParsePositiveAmount(p.Get("amount"))
	if err != nil {
		return b, invalidField("amount", err)
	}
	b.Amount = amount

	if b.StartDate, err = core.ParseDate(p.Get("startDate")); err != nil {
		return b, invalidField("startDate", core.ErrInvalidDate)
	}
	if b.EndDate, err = core.ParseDate(p.Get("endDate")); err != nil {
		return b, invalidField("endDate", core.ErrInvalidDate)
	}
	return b, nil
}
