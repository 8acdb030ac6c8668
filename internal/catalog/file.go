package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"example.com/enrollment/internal/domain"
)

// Source produces the seed catalog once at startup.
type Source interface {
	Load(ctx context.Context) ([]domain.Activity, error)
}

// BuiltinSource serves Default.
type BuiltinSource struct{}

// Load implements Source.
func (BuiltinSource) Load(context.Context) ([]domain.Activity, error) {
	return Default(), nil
}

// FileSource reads the catalog from a YAML (or JSON) file.
type FileSource struct {
	Path string
}

// Load implements Source.
func (f FileSource) Load(context.Context) ([]domain.Activity, error) {
	return LoadFile(f.Path)
}

type fileEntry struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Schedule        string   `yaml:"schedule"`
	MaxParticipants int      `yaml:"max_participants"`
	Participants    []string `yaml:"participants"`
}

type fileDocument struct {
	Activities []fileEntry `yaml:"activities"`
}

// LoadFile reads a catalog document from path.
func LoadFile(path string) ([]domain.Activity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	activities, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return activities, nil
}

// Parse decodes a catalog document of the form
//
//	activities:
//	  - name: Chess Club
//	    description: ...
//	    schedule: ...
//	    max_participants: 12
//	    participants: [michael@mergington.edu]
func Parse(r io.Reader) ([]domain.Activity, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc fileDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty catalog document")
		}
		return nil, err
	}
	if len(doc.Activities) == 0 {
		return nil, errors.New("catalog lists no activities")
	}

	out := make([]domain.Activity, 0, len(doc.Activities))
	for _, entry := range doc.Activities {
		out = append(out, domain.Activity{
			Name:            entry.Name,
			Description:     entry.Description,
			Schedule:        entry.Schedule,
			MaxParticipants: entry.MaxParticipants,
			Participants:    append([]string(nil), entry.Participants...),
		})
	}
	return out, nil
}
