package items

import "encoding/json"

// Record is one item of the dataset, keyed "Id", "Rare" and "name" on
// disk. Only ID and Rarity drive image resolution; the remaining fields
// are carried opaquely.
type Record struct {
	ID     int64
	Rarity string
	Name   string
	Fields map[string]json.RawMessage
}

// MarshalJSON flattens the opaque fields back next to the known ones.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["Id"] = r.ID
	out["Rare"] = r.Rarity
	if r.Name != "" {
		out["name"] = r.Name
	}
	return json.Marshal(out)
}
