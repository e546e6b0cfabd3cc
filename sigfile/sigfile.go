// Package sigfile loads named signature sets from YAML.
//
//	signatures:
//	  - name: player_base
//	    module: game.exe
//	    pattern: "48 8B 05 ** ** ** ** 48 85 C0"
//	    description: RIP-relative load of the player pointer
package sigfile

import (
	"errors"
	"fmt"
	"os"

	"sigscan/pattern"

	"gopkg.in/yaml.v3"
)

// ErrNoSignatures is returned for a file without any signature.
var ErrNoSignatures = errors.New("no signatures found")

// Signature is a compiled, named pattern.
type Signature struct {
	Name        string
	Module      string
	Description string
	Pattern     pattern.Pattern
}

type yamlSignature struct {
	Name        string `yaml:"name"`
	Module      string `yaml:"module"`
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description,omitempty"`
}

type yamlSignaturesFile struct {
	Signatures []yamlSignature `yaml:"signatures"`
}

// Parse compiles every signature in data. Names must be unique.
func Parse(data []byte) ([]Signature, error) {
	var file yamlSignaturesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Signatures) == 0 {
		return nil, ErrNoSignatures
	}

	seen := make(map[string]bool, len(file.Signatures))
	signatures := make([]Signature, 0, len(file.Signatures))
	for i, ys := range file.Signatures {
		if ys.Name == "" {
			return nil, fmt.Errorf("signature %d: missing name", i)
		}
		if seen[ys.Name] {
			return nil, fmt.Errorf("signature %s: duplicate name", ys.Name)
		}
		seen[ys.Name] = true

		p, err := pattern.New(ys.Pattern)
		if err != nil {
			return nil, fmt.Errorf("signature %s: %w", ys.Name, err)
		}
		signatures = append(signatures, Signature{
			Name:        ys.Name,
			Module:      ys.Module,
			Description: ys.Description,
			Pattern:     p,
		})
	}
	return signatures, nil
}

// Load reads and compiles a signature file.
func Load(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	signatures, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return signatures, nil
}

// Marshal renders signatures back to YAML.
func Marshal(signatures []Signature) ([]byte, error) {
	var file yamlSignaturesFile
	for _, s := range signatures {
		file.Signatures = append(file.Signatures, yamlSignature{
			Name:        s.Name,
			Module:      s.Module,
			Pattern:     s.Pattern.String(),
			Description: s.Description,
		})
	}
	return yaml.Marshal(file)
}
