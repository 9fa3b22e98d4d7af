package scraper

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
)

// FileSource reads records from a local YAML or JSON file, either a list of
// records or a mapping with the list under "jobs". Records without a scrape
// time take the file's modification time.
type FileSource struct {
	name string
	path string
}

func NewFileSource(sc config.SourceConfig) *FileSource {
	return &FileSource{name: sc.Name, path: sc.Path}
}

func (s *FileSource) Name() string { return s.name }

func (s *FileSource) Fetch(ctx context.Context) ([]job.RawJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	records, err := decodeYAMLRecords(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	stamp(records, s.name, info.ModTime().UTC())
	return records, nil
}

// decodeYAMLRecords accepts YAML and, since JSON is valid YAML, JSON too.
func decodeYAMLRecords(data []byte) ([]job.RawJob, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return []job.RawJob{}, nil
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var records []job.RawJob
		if err := root.Decode(&records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var env envelope
	if err := root.Decode(&env); err != nil {
		return nil, err
	}
	return env.records(), nil
}
