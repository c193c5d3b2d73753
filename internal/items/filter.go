package items

import "strings"

type FilterOptions struct {
	Rarities  []string
	FreeWords string
}

func matchesAny(s string, wants []string) bool {
	for _, w := range wants {
		if strings.EqualFold(s, w) {
			return true
		}
	}
	return false
}

// Filter keeps records matching every given option. Rarities match
// case-insensitively; each free word must appear in the name or rarity.
func Filter(recs []Record, opt FilterOptions) []Record {
	kw := strings.Fields(strings.ToLower(opt.FreeWords))
	out := []Record{}
	for _, r := range recs {
		if len(opt.Rarities) > 0 && !matchesAny(r.Rarity, opt.Rarities) {
			continue
		}
		if len(kw) > 0 {
			hay := strings.ToLower(r.Name + " " + r.Rarity)
			ok := true
			for _, k := range kw {
				if !strings.Contains(hay, k) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
