package yamlcatalog

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

type document struct {
	Frameworks []framework `yaml:"frameworks"`
}

type framework struct {
	ID          string    `yaml:"id"`
	Code        string    `yaml:"code"`
	Name        string    `yaml:"name"`
	Version     string    `yaml:"version"`
	Description string    `yaml:"description"`
	Active      *bool     `yaml:"active"`
	Controls    []control `yaml:"controls"`
}

type control struct {
	ID          string `yaml:"id"`
	Code        string `yaml:"code"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Guidance    string `yaml:"guidance"`
	Mandatory   *bool  `yaml:"mandatory"`
	Risk        string `yaml:"risk"`
}

// Decoder reads framework catalogs from YAML. Omitted active and mandatory
// flags default to true.
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(r io.Reader) ([]domain.FrameworkCatalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}

	out := make([]domain.FrameworkCatalog, 0, len(doc.Frameworks))
	for _, fw := range doc.Frameworks {
		catalog := domain.FrameworkCatalog{
			Framework: domain.Framework{
				ID:          strings.TrimSpace(fw.ID),
				Code:        strings.TrimSpace(fw.Code),
				Name:        strings.TrimSpace(fw.Name),
				Version:     strings.TrimSpace(fw.Version),
				Description: strings.TrimSpace(fw.Description),
				IsActive:    boolOr(fw.Active, true),
			},
			Controls: make([]domain.Control, 0, len(fw.Controls)),
		}
		for _, c := range fw.Controls {
			risk, ok := domain.ParseRiskLevel(c.Risk)
			if !ok && strings.TrimSpace(c.Risk) != "" {
				return nil, fmt.Errorf("framework %s control %s: unknown risk %q", fw.Code, c.Code, c.Risk)
			}
			catalog.Controls = append(catalog.Controls, domain.Control{
				ID:               strings.TrimSpace(c.ID),
				Code:             strings.TrimSpace(c.Code),
				Title:            strings.TrimSpace(c.Title),
				Description:      strings.TrimSpace(c.Description),
				Guidance:         strings.TrimSpace(c.Guidance),
				IsMandatory:      boolOr(c.Mandatory, true),
				DefaultRiskLevel: risk,
			})
		}
		out = append(out, catalog)
	}
	return out, nil
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
