package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

type Encoding string

const (
	EncodingAuto Encoding = "auto"
	EncodingCSV  Encoding = "csv"
	EncodingJSON Encoding = "json"
)

// ParseError reports a payload that cannot become a Reading.
type ParseError struct {
	Field  Field
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "parse reading: " + e.Reason
	}
	return fmt.Sprintf("parse reading: %s: %s", e.Field, e.Reason)
}

// Parser turns raw device payloads into readings holding only the raw
// measurements. Derived fields are left for Derive.
type Parser struct {
	mapping  FieldMapping
	encoding Encoding
}

func NewParser(mapping FieldMapping, encoding Encoding) (*Parser, error) {
	switch encoding {
	case EncodingAuto, EncodingCSV, EncodingJSON:
	case "":
		encoding = EncodingAuto
	default:
		return nil, fmt.Errorf("unsupported payload encoding %q", encoding)
	}
	return &Parser{mapping: mapping, encoding: encoding}, nil
}

func (p *Parser) Mapping() FieldMapping { return p.mapping }

// Parse decodes payload. receivedAt becomes the reading timestamp unless the
// payload carries its own.
func (p *Parser) Parse(payload []byte, receivedAt time.Time) (domain.Reading, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return domain.Reading{}, &ParseError{Reason: "empty payload"}
	}

	enc := p.encoding
	if enc == EncodingAuto {
		enc = EncodingCSV
		if trimmed[0] == '{' {
			enc = EncodingJSON
		}
	}

	var (
		values map[Field]float64
		ts     = receivedAt
		err    error
	)
	if enc == EncodingJSON {
		values, ts, err = p.parseJSON(trimmed, receivedAt)
	} else {
		values, err = p.parseCSV(string(trimmed))
	}
	if err != nil {
		return domain.Reading{}, err
	}

	r := domain.Reading{
		Timestamp:          ts.Truncate(time.Millisecond),
		VoltageAC:          values[FieldVoltageAC],
		VoltageDC:          values[FieldVoltageDC],
		CurrentDC:          values[FieldCurrentDC],
		CurrentAC:          values[FieldCurrentAC],
		WindSpeed:          values[FieldWindSpeed],
		BatteryTemperature: values[FieldBatteryTemp],
		Humidity:           values[FieldHumidity],
	}
	if rpm, ok := values[FieldRPM]; ok {
		r.RPM = &rpm
	}
	return r, nil
}

func (p *Parser) parseCSV(s string) (map[Field]float64, error) {
	parts := strings.Split(s, ",")
	if want := p.mapping.MinFields(); len(parts) < want {
		return nil, &ParseError{Reason: fmt.Sprintf("expected %d values, got %d", want, len(parts))}
	}
	out := make(map[Field]float64, len(p.mapping.Fields))
	for _, f := range p.mapping.Fields {
		v, err := parseNumber(strings.TrimSpace(parts[f.Index]))
		if err != nil {
			return nil, &ParseError{Field: f.Field, Reason: err.Error()}
		}
		out[f.Field] = v
	}
	return out, nil
}

func (p *Parser) parseJSON(b []byte, receivedAt time.Time) (map[Field]float64, time.Time, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, time.Time{}, &ParseError{Reason: "invalid json: " + err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, time.Time{}, &ParseError{Reason: "invalid json: trailing data after object"}
	}

	out := make(map[Field]float64, len(p.mapping.Fields))
	for _, f := range p.mapping.Fields {
		raw, ok := obj[f.Key]
		if !ok || raw == nil {
			return nil, time.Time{}, &ParseError{Field: f.Field, Reason: fmt.Sprintf("missing key %q", f.Key)}
		}
		var (
			v   float64
			err error
		)
		switch x := raw.(type) {
		case json.Number:
			v, err = parseNumber(x.String())
		case string:
			v, err = parseNumber(strings.TrimSpace(x))
		default:
			err = fmt.Errorf("not a number: %v", x)
		}
		if err != nil {
			return nil, time.Time{}, &ParseError{Field: f.Field, Reason: err.Error()}
		}
		out[f.Field] = v
	}

	ts := receivedAt
	if p.mapping.TimestampKey != "" {
		if s, ok := obj[p.mapping.TimestampKey].(string); ok && s != "" {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, time.Time{}, &ParseError{Reason: "invalid timestamp: " + err.Error()}
			}
			ts = t
		}
	}
	return out, ts, nil
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %q", s)
	}
	return v, nil
}
