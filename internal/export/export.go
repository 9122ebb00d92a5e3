// Package export implements the data-export tool: it writes a set of
// keyed records to a CSV file under the export directory and hands the
// model a download URL to relay to the user.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ic-sshang/AIAgent/internal/tools"
)

// ToolName is the registered name of the export tool. The agent loop is
// configured with this name so the cached-result fallback applies to it.
const ToolName = "export_results"

// Exporter writes export artifacts and serves their metadata.
type Exporter struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// New creates an exporter rooted at dir, creating the directory if
// needed. baseURL prefixes generated download links.
func New(dir, baseURL string, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Register adds the export tool to reg.
func (e *Exporter) Register(reg *tools.Registry) {
	reg.Register(tools.Descriptor{
		Name: ToolName,
		Description: "Export previously retrieved records to a downloadable CSV file. " +
			"Pass the records to export in the data parameter; when exporting " +
			"results you just retrieved, the full result set is exported. " +
			"Always give the user the returned download_url.",
		Params: []tools.Param{
			{
				Name:        "data",
				Type:        "array",
				Description: "Records to export, one object per row",
				Items:       map[string]any{"type": "object"},
				Required:    true,
			},
			{
				Name:        "filename",
				Type:        "string",
				Description: "Output file name; .csv is appended if missing",
			},
		},
	}, e.exportResults)
}

func (e *Exporter) exportResults(ctx context.Context, args map[string]any) (any, error) {
	records, err := coerceRecords(args["data"])
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return map[string]any{
			"success": false,
			"message": "No data to export. Run a search first, then export its results.",
		}, nil
	}

	filename := safeFilename(args["filename"])
	columns := columnOrder(records)

	path := filepath.Join(e.dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = formatCell(rec[col])
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush export: %w", err)
	}

	e.logger.Info("export written", "file", filename, "rows", len(records))

	return map[string]any{
		"success":       true,
		"message":       fmt.Sprintf("Exported %d rows to %s", len(records), filename),
		"download_url":  e.baseURL + "/v1/download/" + filename,
		"filename":      filename,
		"rows_exported": len(records),
		"columns":       columns,
	}, nil
}

// Path resolves filename inside the export directory, rejecting anything
// that would escape it.
func (e *Exporter) Path(filename string) (string, error) {
	clean := filepath.Base(filepath.Clean(filename))
	if clean != filename || clean == "." || clean == ".." || clean == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	path := filepath.Join(e.dir, clean)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("export %q: %w", clean, err)
	}
	return path, nil
}

// coerceRecords accepts the two shapes the data argument arrives in:
// decoded model JSON ([]any of objects) and the loop's cache records
// ([]map[string]any).
func coerceRecords(v any) ([]map[string]any, error) {
	switch data := v.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return data, nil
	case []any:
		records := make([]map[string]any, 0, len(data))
		for i, item := range data {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("data[%d] is %T, want an object", i, item)
			}
			records = append(records, rec)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("data must be an array of objects, got %T", v)
	}
}

// columnOrder collects every key present across the records, sorted for
// a stable header.
func columnOrder(records []map[string]any) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, rec := range records {
		for key := range rec {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// safeFilename derives a CSV file name from the optional filename
// argument, stripping any path components the model may have included.
func safeFilename(v any) string {
	name, _ := v.(string)
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return fmt.Sprintf("export_%s_%s.csv",
			time.Now().UTC().Format("20060102_150405"),
			uuid.NewString()[:8])
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != ".csv" {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".csv"
	}
	return name
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// Keep integral values integral after a JSON round trip.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}
