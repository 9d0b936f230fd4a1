// Package feed loads bars from CSV files and live WebSocket streams.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"smc-lab/internal/domain"
)

// csvColumns are the required header columns, in any order. A volume
// column is accepted and ignored.
var csvColumns = []string{"time", "open", "high", "low", "close"}

// LoadCSV reads bars from a CSV file. The time column accepts epoch
// milliseconds or RFC 3339. Bars are validated before returning:
// strictly increasing timestamps, finite prices, coherent OHLC.
func LoadCSV(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses bars from CSV content.
func ReadCSV(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		b, err := parseBar(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}

	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range csvColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	return cols, nil
}

func parseBar(record []string, cols map[string]int) (domain.Bar, error) {
	field := func(name string) (string, error) {
		idx := cols[name]
		if idx >= len(record) {
			return "", fmt.Errorf("short record: no %s field", name)
		}
		return strings.TrimSpace(record[idx]), nil
	}

	var b domain.Bar

	raw, err := field("time")
	if err != nil {
		return b, err
	}
	b.TimestampMs, err = parseTime(raw)
	if err != nil {
		return b, err
	}

	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"open", &b.Open},
		{"high", &b.High},
		{"low", &b.Low},
		{"close", &b.Close},
	} {
		raw, err := field(p.name)
		if err != nil {
			return b, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, fmt.Errorf("parse %s %q: %w", p.name, raw, err)
		}
		*p.dst = v
	}

	return b, nil
}

func parseTime(raw string) (int64, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("parse time %q: want epoch millis or RFC 3339", raw)
}
