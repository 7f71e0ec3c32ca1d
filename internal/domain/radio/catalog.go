package radio

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stations.yaml
var builtinStations []byte

// Catalog errors.
var (
	ErrDuplicateStation = errors.New("duplicate station id")
	ErrUnknownFormat    = errors.New("unknown metadata format")
	ErrInvalidStation   = errors.New("invalid station")
)

// Catalog is an immutable, ordered set of stations.
type Catalog struct {
	order []string
	byID  map[string]Station
}

type catalogFile struct {
	Stations []Station `yaml:"stations"`
}

// NewCatalog validates the stations and builds a catalog that preserves
// their order.
func NewCatalog(stations []Station) (*Catalog, error) {
	c := &Catalog{
		order: make([]string, 0, len(stations)),
		byID:  make(map[string]Station, len(stations)),
	}

	for i, st := range stations {
		if strings.TrimSpace(st.ID) == "" {
			return nil, fmt.Errorf("%w: station %d has no id", ErrInvalidStation, i)
		}
		if strings.TrimSpace(st.Name) == "" {
			return nil, fmt.Errorf("%w: station %q has no name", ErrInvalidStation, st.ID)
		}
		if _, exists := c.byID[st.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStation, st.ID)
		}

		if st.Format == "" {
			st.Format = FormatNone
		}
		if _, ok := parsers[st.Format]; !ok && (st.Format != FormatNone || st.HasMetadata()) {
			return nil, fmt.Errorf("%w: station %q uses %q", ErrUnknownFormat, st.ID, st.Format)
		}

		c.order = append(c.order, st.ID)
		c.byID[st.ID] = st.clone()
	}

	return c, nil
}

// LoadCatalog parses a YAML station list.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse station catalog: %w", err)
	}
	return NewCatalog(file.Stations)
}

// DefaultCatalog returns the built-in station catalog.
// It panics if the embedded table is broken, which is a build defect.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(builtinStations)
	if err != nil {
		panic(fmt.Sprintf("radio: built-in station catalog: %v", err))
	}
	return c
}

// Get returns the station with the given id.
func (c *Catalog) Get(id string) (Station, bool) {
	st, ok := c.byID[id]
	if !ok {
		return Station{}, false
	}
	return st.clone(), true
}

// All returns every station in catalog order.
func (c *Catalog) All() []Station {
	out := make([]Station, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].clone())
	}
	return out
}

// IDs returns every station id in catalog order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Len returns the number of stations.
func (c *Catalog) Len() int {
	return len(c.order)
}
