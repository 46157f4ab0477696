package roster

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"rostersync/internal/logging"
	"rostersync/internal/services"
)

// Failure is a row that did not pass validation.
type Failure struct {
	Line   int               `json:"line"`
	Record map[string]string `json:"record"`
	Errors []string          `json:"errors"`
}

// LoadResult partitions a file's rows.
type LoadResult struct {
	Schema  string
	Rows    int
	Valid   []Record
	Invalid []Failure
}

// Loader reads roster files.
type Loader struct {
	registry  *Registry
	validator *Validator
	logger    *slog.Logger
}

// NewLoader constructs a loader. A nil logger discards output.
func NewLoader(registry *Registry, validator *Validator, logger *slog.Logger) *Loader {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if validator == nil {
		validator = NewValidator(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{registry: registry, validator: validator, logger: logger}
}

// Schemas lists the schema names this loader can validate against.
func (l *Loader) Schemas() []string {
	return l.registry.Names()
}

// Load reads path and validates every row against schemaName.
func (l *Loader) Load(ctx context.Context, path, schemaName string) (*LoadResult, error) {
	schema, err := l.registry.Lookup(schemaName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrLoad, "roster", "open", "Failed to open roster file", err)
	}
	defer file.Close()

	result, err := l.read(ctx, file, schema)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, l.logger).Info("roster loaded",
		logging.String(logging.FieldEventType, "roster_loaded"),
		logging.String("path", path),
		logging.String("schema", schema.Name),
		logging.Int("rows", result.Rows),
		logging.Int("valid", len(result.Valid)),
		logging.Int("invalid", len(result.Invalid)),
	)
	return result, nil
}

// Read validates rows from r. It backs Load and is exported for callers that
// already hold the content.
func (l *Loader) Read(ctx context.Context, r io.Reader, schemaName string) (*LoadResult, error) {
	schema, err := l.registry.Lookup(schemaName)
	if err != nil {
		return nil, err
	}
	return l.read(ctx, r, schema)
}

func (l *Loader) read(ctx context.Context, r io.Reader, schema *Schema) (*LoadResult, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrLoad, "roster", "header", "Roster file has no header row", nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrLoad, "roster", "header", "Failed to parse header", err)
	}
	columns := normalizeHeader(header)
	if len(columns) == 0 {
		return nil, services.Wrap(services.ErrLoad, "roster", "header", "Roster file has an empty header row", nil)
	}

	result := &LoadResult{Schema: schema.Name}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrLoad, "roster", "parse", "Malformed roster file", err)
		}
		line, _ := reader.FieldPos(0)
		if blankRow(row) {
			continue
		}
		result.Rows++

		raw := make(map[string]string, len(columns))
		for i, name := range columns {
			if name == "" {
				continue
			}
			if i < len(row) {
				raw[name] = strings.TrimSpace(row[i])
			} else {
				raw[name] = ""
			}
		}
		fields, problems := l.validator.Validate(schema, raw)
		if len(problems) > 0 {
			result.Invalid = append(result.Invalid, Failure{Line: line, Record: raw, Errors: problems})
			continue
		}
		result.Valid = append(result.Valid, Record{Line: line, Raw: raw, Fields: fields})
	}
	return result, nil
}

func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	named := 0
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[i] = strings.ToLower(strings.TrimSpace(h))
		if columns[i] != "" {
			named++
		}
	}
	if named == 0 {
		return nil
	}
	return columns
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// String summarizes the result for logs.
func (r *LoadResult) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %d rows, %d valid, %d invalid", r.Schema, r.Rows, len(r.Valid), len(r.Invalid))
}
