package simulation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"simbridge/pkg/logging"
)

// Export formats supported by ExportResults.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ExportResults writes the persisted outputs of a run to the exports
// directory in the requested format and returns the path of the written
// file. The run must have outputs on disk.
func (s *Store) ExportResults(id, format string) (string, error) {
	if format != FormatCSV && format != FormatJSON {
		return "", fmt.Errorf("format must be %q or %q", FormatCSV, FormatJSON)
	}

	if _, err := s.Get(id); err != nil {
		return "", err
	}

	outputs, ok, err := s.LoadOutputs(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no results file found for %s", id)
	}

	var path string
	switch format {
	case FormatJSON:
		path = filepath.Join(s.exportsDir, "json", id+"_results.json")
		data, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding export for %s: %w", id, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", err
		}
	case FormatCSV:
		path = filepath.Join(s.exportsDir, "csv", id+"_results.csv")
		if err := writeCSV(path, outputs); err != nil {
			return "", err
		}
	}

	logging.Info("Store", "Exported %s results to %s", id, path)
	return path, nil
}

// writeCSV flattens the output map to a single-row CSV with sorted headers
// so exports are deterministic.
func writeCSV(path string, outputs map[string]any) error {
	headers := make([]string, 0, len(outputs))
	for key := range outputs {
		headers = append(headers, key)
	}
	sort.Strings(headers)

	row := make([]string, len(headers))
	for i, key := range headers {
		row[i] = stringifyValue(outputs[key])
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// stringifyValue renders an output value for CSV. Nested structures are
// serialized as compact JSON rather than Go's fmt representation.
func stringifyValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64, bool, int, int64:
		return fmt.Sprintf("%v", val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
