package room

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlRoomFile is the top-level YAML structure for room descriptor files.
type yamlRoomFile struct {
	Room yamlRoom `yaml:"room"`
}

// yamlRoom is the YAML representation of a room descriptor.
type yamlRoom struct {
	Name        string            `yaml:"name"`
	FullName    string            `yaml:"full_name"`
	Description string            `yaml:"description"`
	Doors       map[string]string `yaml:"doors"`
}

// LoadDescriptorFromFile reads and validates a room descriptor YAML file.
//
// Precondition: path must point to a valid YAML room file.
// Postcondition: Returns a validated Descriptor or a non-nil error.
func LoadDescriptorFromFile(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("reading room file %s: %w", path, err)
	}
	return LoadDescriptorFromBytes(data)
}

// LoadDescriptorFromBytes parses and validates a room descriptor from
// YAML bytes.
//
// Postcondition: Returns a validated Descriptor or a non-nil error.
func LoadDescriptorFromBytes(data []byte) (Descriptor, error) {
	var file yamlRoomFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Descriptor{}, fmt.Errorf("parsing room YAML: %w", err)
	}

	desc := Descriptor{
		Name:        file.Room.Name,
		FullName:    file.Room.FullName,
		Description: strings.TrimSpace(file.Room.Description),
		Doors:       file.Room.Doors,
	}
	if desc.Doors == nil {
		desc.Doors = make(map[string]string)
	}
	if err := desc.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("validating room: %w", err)
	}
	return desc, nil
}
