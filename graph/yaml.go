package graph

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Declaration document shape, e.g.:
//
//	entities:
//	  - name: User
//	    fields:
//	      - {name: id, type: int64, key: true, server_default: true}
//	      - {name: email, type: string, unique: true}
//	    edges:
//	      - {name: posts, type: Post, columns: [author_id], on_delete: cascade}
type (
	yamlModel struct {
		Entities []yamlEntity `yaml:"entities"`
	}

	yamlEntity struct {
		Name   string      `yaml:"name"`
		Fields []yamlField `yaml:"fields"`
		Edges  []yamlEdge  `yaml:"edges"`
	}

	yamlField struct {
		Name          string   `yaml:"name"`
		Type          string   `yaml:"type"`
		Key           bool     `yaml:"key"`
		Nillable      bool     `yaml:"nillable"`
		Unique        bool     `yaml:"unique"`
		Immutable     bool     `yaml:"immutable"`
		Default       any      `yaml:"default"`
		ServerDefault bool     `yaml:"server_default"`
		Values        []string `yaml:"values"`
		Comment       string   `yaml:"comment"`
	}

	yamlEdge struct {
		Name     string   `yaml:"name"`
		Type     string   `yaml:"type"`
		Ref      string   `yaml:"ref"`
		Unique   bool     `yaml:"unique"`
		Required bool     `yaml:"required"`
		Columns  []string `yaml:"columns"`
		Through  string   `yaml:"through"`
		OnDelete string   `yaml:"on_delete"`
		Loading  string   `yaml:"loading"`
		Comment  string   `yaml:"comment"`
	}
)

var yamlTypes = map[string]func(string) *field.Builder{
	"bool":    field.Bool,
	"time":    field.Time,
	"bytes":   field.Bytes,
	"uuid":    field.UUID,
	"int":     field.Int,
	"int64":   field.Int64,
	"float64": field.Float64,
	"string":  field.String,
	"enum":    field.Enum,
	"json":    field.JSON,
}

// FromYAML builds and finalizes a registry from a YAML declaration document.
func FromYAML(r io.Reader) (*Graph, error) {
	var doc yamlModel
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, strata.NewConfigurationError("decoding model: %v", err)
	}
	g := New()
	for _, ye := range doc.Entities {
		fields := make([]*field.Builder, 0, len(ye.Fields))
		for _, yf := range ye.Fields {
			fb, err := yf.builder(ye.Name)
			if err != nil {
				return nil, err
			}
			fields = append(fields, fb)
		}
		if err := g.Register(ye.Name, fields...); err != nil {
			return nil, err
		}
	}
	for _, ye := range doc.Entities {
		edges := make([]*edge.Builder, 0, len(ye.Edges))
		for _, yd := range ye.Edges {
			eb, err := yd.builder(ye.Name)
			if err != nil {
				return nil, err
			}
			edges = append(edges, eb)
		}
		if len(edges) > 0 {
			if err := g.Relate(ye.Name, edges...); err != nil {
				return nil, err
			}
		}
	}
	if err := g.Finalize(); err != nil {
		return nil, err
	}
	return g, nil
}

func (yf yamlField) builder(entity string) (*field.Builder, error) {
	ctor, ok := yamlTypes[yf.Type]
	if !ok {
		return nil, strata.NewConfigurationError("entity %q: property %q has unknown type %q", entity, yf.Name, yf.Type)
	}
	fb := ctor(yf.Name)
	if len(yf.Values) > 0 {
		fb.Values(yf.Values...)
	}
	if yf.Key {
		fb.Key()
	}
	if yf.Nillable {
		fb.Nillable()
	}
	if yf.Unique {
		fb.Unique()
	}
	if yf.Immutable {
		fb.Immutable()
	}
	if yf.Default != nil {
		fb.Default(yf.Default)
	}
	if yf.ServerDefault {
		fb.ServerDefault()
	}
	if yf.Comment != "" {
		fb.Comment(yf.Comment)
	}
	return fb, nil
}

func (yd yamlEdge) builder(entity string) (*edge.Builder, error) {
	var eb *edge.Builder
	if yd.Ref != "" {
		eb = edge.From(yd.Name, yd.Type).Ref(yd.Ref)
	} else {
		eb = edge.To(yd.Name, yd.Type)
	}
	if yd.Unique {
		eb.Unique()
	}
	if yd.Required {
		eb.Required()
	}
	if len(yd.Columns) > 0 {
		eb.Columns(yd.Columns...)
	}
	if yd.Through != "" {
		eb.Through(yd.Through)
	}
	switch yd.OnDelete {
	case "", "no_action":
	case "cascade":
		eb.OnDelete(edge.Cascade)
	case "restrict":
		eb.OnDelete(edge.Restrict)
	case "set_null":
		eb.OnDelete(edge.SetNull)
	default:
		return nil, strata.NewConfigurationError("entity %q: navigation %q has unknown delete behavior %q", entity, yd.Name, yd.OnDelete)
	}
	switch yd.Loading {
	case "", "explicit":
	case "eager":
		eb.Loading(edge.EagerLoad)
	case "lazy":
		eb.Loading(edge.LazyLoad)
	default:
		return nil, strata.NewConfigurationError("entity %q: navigation %q has unknown load strategy %q", entity, yd.Name, yd.Loading)
	}
	if yd.Comment != "" {
		eb.Comment(yd.Comment)
	}
	return eb, nil
}
