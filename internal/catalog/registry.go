package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var defaultRegistry []byte

// Defaults apply to every table unless the table overrides them.
type Defaults struct {
	TitleFallbacks []string `yaml:"title_fallbacks" json:"titleFallbacks,omitempty"`
	BodyFallbacks  []string `yaml:"body_fallbacks" json:"bodyFallbacks,omitempty"`
	IDFallbacks    []string `yaml:"id_fallbacks" json:"idFallbacks,omitempty"`
	CreatedField   string   `yaml:"created_field" json:"createdField,omitempty"`
	OrderBy        string   `yaml:"order_by" json:"orderBy,omitempty"`
	// PlaceholderTitle, when set, titles rows that have none instead of dropping them.
	PlaceholderTitle string `yaml:"placeholder_title" json:"placeholderTitle,omitempty"`
	// Project restricts card fetches to Columns. Leave it off when a fallback
	// column does not exist on every table, since $select on a missing column
	// fails the whole request.
	Project bool `yaml:"project" json:"project,omitempty"`
}

func (d Defaults) createdField() string {
	if d.CreatedField == "" {
		return "createdon"
	}
	return d.CreatedField
}

// TableDescriptor describes one upstream table and how its rows become cards.
type TableDescriptor struct {
	Key                string `yaml:"key" json:"key"`
	LogicalName        string `yaml:"logical_name" json:"logicalName"`
	PhysicalCollection string `yaml:"physical_collection" json:"physicalCollection,omitempty"`
	TitleField         string `yaml:"title_field" json:"titleField"`
	SubtitleField      string `yaml:"subtitle_field" json:"subtitleField,omitempty"`
	BodyField          string `yaml:"body_field" json:"bodyField,omitempty"`
	DetailsField       string `yaml:"details_field" json:"detailsField,omitempty"`
	TagField           string `yaml:"tag_field" json:"tagField,omitempty"`
	Tag                string `yaml:"tag" json:"tag,omitempty"`
	OrderBy            string `yaml:"order_by" json:"orderBy,omitempty"`
	Filter             string `yaml:"filter" json:"filter,omitempty"`
}

// IDField is the primary key column by Dataverse convention.
func (t TableDescriptor) IDField() string {
	return t.LogicalName + "id"
}

// Columns lists every column normalization can read, for projection.
func (t TableDescriptor) Columns(d Defaults) []string {
	var cols []string
	seen := map[string]bool{}
	add := func(fields ...string) {
		for _, f := range fields {
			if f != "" && !seen[f] {
				seen[f] = true
				cols = append(cols, f)
			}
		}
	}
	add(t.IDField(), t.TitleField)
	add(d.TitleFallbacks...)
	add(t.SubtitleField, t.BodyField)
	add(d.BodyFallbacks...)
	add(t.DetailsField, t.TagField, d.createdField())
	return cols
}

// IndustryDescriptor groups tables into one dashboard panel.
type IndustryDescriptor struct {
	Key    string   `yaml:"key" json:"key"`
	Label  string   `yaml:"label" json:"label"`
	Accent string   `yaml:"accent" json:"accent,omitempty"`
	Tables []string `yaml:"tables" json:"tables"`
}

// Registry is the static table and industry configuration. It is immutable
// once loaded.
type Registry struct {
	Defaults   Defaults             `yaml:"defaults" json:"defaults"`
	Tables     []TableDescriptor    `yaml:"tables" json:"tables"`
	Industries []IndustryDescriptor `yaml:"industries" json:"industries"`

	tables     map[string]int
	byLogical  map[string]int
	industries map[string]int
}

// Default returns the registry compiled into the binary.
func Default() *Registry {
	r, err := Parse(defaultRegistry)
	if err != nil {
		panic(fmt.Sprintf("embedded registry: %v", err))
	}
	return r
}

// Load reads a registry file; an empty path yields the embedded registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	if err := r.index(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Registry) index() error {
	r.tables = make(map[string]int, len(r.Tables))
	r.byLogical = make(map[string]int, len(r.Tables))
	r.industries = make(map[string]int, len(r.Industries))

	for i, t := range r.Tables {
		switch {
		case t.Key == "":
			return fmt.Errorf("table %d: key is required", i)
		case t.LogicalName == "":
			return fmt.Errorf("table %s: logical_name is required", t.Key)
		case t.TitleField == "":
			return fmt.Errorf("table %s: title_field is required", t.Key)
		}
		if _, dup := r.tables[t.Key]; dup {
			return fmt.Errorf("duplicate table key %q", t.Key)
		}
		r.tables[t.Key] = i
		if _, dup := r.byLogical[t.LogicalName]; !dup {
			r.byLogical[t.LogicalName] = i
		}
	}

	for i, ind := range r.Industries {
		if ind.Key == "" {
			return fmt.Errorf("industry %d: key is required", i)
		}
		if _, dup := r.industries[ind.Key]; dup {
			return fmt.Errorf("duplicate industry key %q", ind.Key)
		}
		if len(ind.Tables) == 0 {
			return fmt.Errorf("industry %s: at least one table is required", ind.Key)
		}
		for _, k := range ind.Tables {
			if _, ok := r.tables[k]; !ok {
				return fmt.Errorf("industry %s: unknown table %q", ind.Key, k)
			}
		}
		r.industries[ind.Key] = i
	}

	if len(r.Tables) == 0 {
		return errors.New("registry has no tables")
	}
	return nil
}

func (r *Registry) Table(key string) (TableDescriptor, bool) {
	i, ok := r.tables[key]
	if !ok {
		return TableDescriptor{}, false
	}
	return r.Tables[i], true
}

func (r *Registry) TableByLogicalName(name string) (TableDescriptor, bool) {
	i, ok := r.byLogical[name]
	if !ok {
		return TableDescriptor{}, false
	}
	return r.Tables[i], true
}

func (r *Registry) Industry(key string) (IndustryDescriptor, bool) {
	i, ok := r.industries[key]
	if !ok {
		return IndustryDescriptor{}, false
	}
	return r.Industries[i], true
}

// OrderBy picks the table's sort order when the caller gives none.
func (r *Registry) OrderBy(t TableDescriptor, requested string) string {
	switch {
	case requested != "":
		return requested
	case t.OrderBy != "":
		return t.OrderBy
	default:
		return r.Defaults.OrderBy
	}
}
