package demand

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrStreamClosed is returned by Stream reads after Close.
var ErrStreamClosed = errors.New("demand stream closed")

// ReadCSV parses rows of "tick,site_id,power_kw" into a Schedule. A header
// row starting with "tick" is skipped.
func ReadCSV(r io.Reader, repeat bool) (*Schedule, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	s := NewSchedule(nil, repeat)
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("demand csv: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(rec[0], "tick") {
			continue
		}
		tick, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("demand csv line %d: tick: %w", line, err)
		}
		p, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("demand csv line %d: power: %w", line, err)
		}
		if err := s.Set(rec[1], tick, p); err != nil {
			return nil, fmt.Errorf("demand csv line %d: %w", line, err)
		}
	}
	return s, nil
}

// LoadCSV reads a schedule from the file at path.
func LoadCSV(path string, repeat bool) (*Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, repeat)
}
