package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"jalrakshak-monitor/internal/models"
)

// Parser handles parsing of recorded telemetry files
type Parser struct {
	format string
	log    *slog.Logger
}

// NewParser creates a new parser with the specified format
func NewParser(format string) *Parser {
	return &Parser{format: format, log: slog.Default().With("component", "parser")}
}

// WithLogger sets the logger skipped lines are reported to
func (p *Parser) WithLogger(l *slog.Logger) *Parser {
	p.log = l.With("component", "parser")
	return p
}

// ParseFile parses a telemetry file
func (p *Parser) ParseFile(filename string) ([]models.TelemetrySample, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse reads samples in the parser's format from r
func (p *Parser) Parse(r io.Reader) ([]models.TelemetrySample, error) {
	switch strings.ToLower(p.format) {
	case "csv":
		return p.parseCSV(r)
	case "json":
		return p.parseJSON(r)
	case "log":
		return p.parseLog(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.format)
	}
}

// parseCSV parses CSV with a header row. Recognised columns: timestamp,
// water_level_ft (or level), ph, turbidity_ntu (or turbidity).
func (p *Parser) parseCSV(r io.Reader) ([]models.TelemetrySample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	indices := make(map[string]int)
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var results []models.TelemetrySample
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}
		lineNum++

		s, err := recordToSample(record, indices)
		if err != nil {
			p.log.Warn("line_skipped", "line", lineNum, "error", err)
			continue
		}
		results = append(results, s)
	}

	return results, nil
}

func recordToSample(record []string, indices map[string]int) (models.TelemetrySample, error) {
	var s models.TelemetrySample
	var err error

	getValue := func(keys ...string) string {
		for _, key := range keys {
			if idx, ok := indices[key]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
		}
		return ""
	}

	if tsStr := getValue("timestamp", "time"); tsStr != "" {
		s.Timestamp, err = parseTimestamp(tsStr)
		if err != nil {
			return s, fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	if s.WaterLevelFeet, err = parseReading(getValue("water_level_ft", "level")); err != nil {
		return s, fmt.Errorf("water level: %w", err)
	}
	if s.PH, err = parseReading(getValue("ph")); err != nil {
		return s, fmt.Errorf("ph: %w", err)
	}
	if s.TurbidityNTU, err = parseReading(getValue("turbidity_ntu", "turbidity")); err != nil {
		return s, fmt.Errorf("turbidity: %w", err)
	}

	return s, nil
}

func parseReading(v string) (float64, error) {
	if v == "" {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.ParseFloat(v, 64)
}

// parseJSON accepts either an array or newline-delimited objects
func (p *Parser) parseJSON(r io.Reader) ([]models.TelemetrySample, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var results []models.TelemetrySample
	if err := json.Unmarshal(raw, &results); err == nil {
		return results, nil
	}

	return p.parseJSONLines(bytes.NewReader(raw))
}

// parseJSONLines parses newline-delimited JSON
func (p *Parser) parseJSONLines(r io.Reader) ([]models.TelemetrySample, error) {
	var results []models.TelemetrySample
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}

		line = strings.TrimSuffix(line, ",")

		var s models.TelemetrySample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			p.log.Warn("line_skipped", "line", lineNum, "error", err)
			continue
		}
		results = append(results, s)
	}

	return results, scanner.Err()
}

// parseLog parses the gauge log format: timestamp|level_ft|ph|turbidity_ntu
func (p *Parser) parseLog(r io.Reader) ([]models.TelemetrySample, error) {
	var results []models.TelemetrySample
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 4 {
			p.log.Warn("line_skipped", "line", lineNum, "error", "insufficient fields")
			continue
		}

		var s models.TelemetrySample
		var err error

		s.Timestamp, err = parseTimestamp(strings.TrimSpace(parts[0]))
		if err != nil {
			p.log.Warn("line_skipped", "line", lineNum, "error", "invalid timestamp")
			continue
		}

		s.WaterLevelFeet, err = parseReading(strings.TrimSpace(parts[1]))
		if err == nil {
			s.PH, err = parseReading(strings.TrimSpace(parts[2]))
		}
		if err == nil {
			s.TurbidityNTU, err = parseReading(strings.TrimSpace(parts[3]))
		}
		if err != nil {
			p.log.Warn("line_skipped", "line", lineNum, "error", err)
			continue
		}

		results = append(results, s)
	}

	return results, scanner.Err()
}

// parseTimestamp tries multiple timestamp formats
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006/01/02 15:04:05",
		"02/01/2006 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(ts, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// ValidateSample checks a sample against physically plausible ranges
func ValidateSample(s *models.TelemetrySample) []string {
	var errors []string

	if err := s.Validate(); err != nil {
		return append(errors, err.Error())
	}
	if s.WaterLevelFeet < 0 || s.WaterLevelFeet > 200 {
		errors = append(errors, "water_level_ft must be between 0 and 200")
	}
	if s.PH < 0 || s.PH > 14 {
		errors = append(errors, "ph must be between 0 and 14")
	}
	if s.TurbidityNTU < 0 {
		errors = append(errors, "turbidity_ntu cannot be negative")
	}

	return errors
}
