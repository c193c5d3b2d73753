package items

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/tidwall/jsonc"
)

// knownKeys are decoded into Record fields and not repeated in Record.Fields.
var knownKeys = map[string]bool{"Id": true, "Rare": true, "name": true}

// LoadFile reads a dataset file: a JSON array of item objects, with
// comments and trailing commas allowed.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	recs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Parse decodes dataset bytes. The source must be a JSON array; entries
// that are not objects or lack a non-negative integral Id are skipped.
func Parse(data []byte) ([]Record, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}

	out := make([]Record, 0, len(raw))
	for i, elem := range raw {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(elem, &obj); err != nil || obj == nil {
			slog.Warn("Skipping dataset entry that is not an object", "entry", i)
			continue
		}
		id, err := parseID(obj["Id"])
		if err != nil {
			slog.Warn("Skipping dataset entry without a usable Id", "entry", i, "err", err)
			continue
		}
		r := Record{ID: id}
		// Rare and name are optional; a non-string value is treated as absent.
		if v, ok := obj["Rare"]; ok {
			_ = json.Unmarshal(v, &r.Rarity)
		}
		if v, ok := obj["name"]; ok {
			_ = json.Unmarshal(v, &r.Name)
		}
		for k, v := range obj {
			if knownKeys[k] {
				continue
			}
			if r.Fields == nil {
				r.Fields = map[string]json.RawMessage{}
			}
			r.Fields[k] = v
		}
		out = append(out, r)
	}
	return out, nil
}

// parseID accepts a non-negative integer Id, including integral floats
// such as 100.0.
func parseID(raw json.RawMessage) (int64, error) {
	if raw == nil {
		return 0, errors.New("missing id")
	}
	var n json.Number
	if len(raw) > 0 && raw[0] == '"' {
		return 0, fmt.Errorf("id %s is a string", raw)
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("id %s is not a number", raw)
	}
	id, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || f != math.Trunc(f) || f < 0 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("id %s is not an integer", raw)
		}
		id = int64(f)
	}
	if id < 0 {
		return 0, fmt.Errorf("negative id %d", id)
	}
	return id, nil
}
