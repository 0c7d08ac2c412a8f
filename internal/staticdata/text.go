package staticdata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type textEntry struct {
	ID   int64  `yaml:"id"`
	Text string `yaml:"text"`
}

type textListFile struct {
	Entries []textEntry `yaml:"text"`
}

func loadText(path string) (map[int64]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("staticdata: read %s: %w", path, err)
	}
	var f textListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("staticdata: parse %s: %w", path, err)
	}
	out := make(map[int64]string, len(f.Entries))
	for _, e := range f.Entries {
		out[e.ID] = e.Text
	}
	return out, nil
}

// Text implements the Static Data Store's "text(id) -> string?" query
// (spec.md §6 "Localized text: ... used by chat and dialog packets").
func (s *Store) Text(id int64) (string, bool) {
	t, ok := s.text[id]
	return t, ok
}
