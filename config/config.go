// Package config describes one comparison run as a YAML document.
//
//	input: NHANES.csv
//	label: Diabetes
//	grid:
//	  feature_a: Age
//	  feature_b: BMI
//	  resolution: 100
//	models:
//	  - name: knn
//	    kind: knn
//	    formula: "Diabetes ~ Age + BMI"
//	    knn:
//	      k: 5
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ezoic/mlsurface/adapter"
	"github.com/ezoic/mlsurface/dataset"
	"github.com/ezoic/mlsurface/grid"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

// Model kinds understood by Build.
const (
	KindNull   = "null"
	KindTree   = "tree"
	KindForest = "forest"
	KindKNN    = "knn"
)

// Config is a complete run description.
type Config struct {
	Input         string         `yaml:"input"`
	Output        string         `yaml:"output"`
	Label         string         `yaml:"label"`
	PositiveLabel string         `yaml:"positive_label"`
	Columns       []ColumnConfig `yaml:"columns"`
	Grid          GridConfig     `yaml:"grid"`
	Models        []ModelConfig  `yaml:"models"`

	// Parallel fits models concurrently, at most Workers at a time (0 = one per model).
	Parallel bool   `yaml:"parallel"`
	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
}

// ColumnConfig declares a selected source column.
type ColumnConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// GridConfig names the two grid features.
type GridConfig struct {
	FeatureA   string `yaml:"feature_a"`
	FeatureB   string `yaml:"feature_b"`
	Resolution int    `yaml:"resolution"`
}

// ModelConfig is one compared model. Only the block matching Kind is read.
type ModelConfig struct {
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind"`
	Formula string        `yaml:"formula"`
	Tree    *TreeConfig   `yaml:"tree,omitempty"`
	Forest  *ForestConfig `yaml:"forest,omitempty"`
	KNN     *KNNConfig    `yaml:"knn,omitempty"`
}

// TreeConfig holds tree hyperparameters.
type TreeConfig struct {
	MinImpurityDecrease float64 `yaml:"min_impurity_decrease"`
	MinSamplesLeaf      int     `yaml:"min_samples_leaf"`
	Criterion           string  `yaml:"criterion"`
}

// ForestConfig holds forest hyperparameters.
type ForestConfig struct {
	NTree   int   `yaml:"ntree"`
	MTry    int   `yaml:"mtry"`
	Seed    int64 `yaml:"seed"`
	Workers int   `yaml:"workers"`
}

// KNNConfig holds neighbour hyperparameters.
type KNNConfig struct {
	K           int  `yaml:"k"`
	Standardize bool `yaml:"standardize"`
}

// UnmarshalYAML starts from the default tree so omitted keys keep their defaults.
func (t *TreeConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain TreeConfig
	d := adapter.NewTreeModel()
	v := plain{MinImpurityDecrease: d.MinImpurityDecrease, MinSamplesLeaf: d.MinSamplesLeaf, Criterion: d.Criterion}
	if err := node.Decode(&v); err != nil {
		return err
	}
	*t = TreeConfig(v)
	return nil
}

// UnmarshalYAML starts from the default forest so omitted keys keep their defaults.
func (f *ForestConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain ForestConfig
	d := adapter.NewForestModel()
	v := plain{NTree: d.NTree, MTry: d.MTry, Seed: d.Seed}
	if err := node.Decode(&v); err != nil {
		return err
	}
	*f = ForestConfig(v)
	return nil
}

// UnmarshalYAML starts from the default k so omitted keys keep their defaults.
func (k *KNNConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain KNNConfig
	v := plain{K: adapter.DefaultK}
	if err := node.Decode(&v); err != nil {
		return err
	}
	*k = KNNConfig(v)
	return nil
}

// Default returns the NHANES diabetes walkthrough: Age and BMI on a 100x100 grid
// compared across the null, tree, forest and 5-neighbour models.
func Default() *Config {
	cols := dataset.NHANESColumns()
	columns := make([]ColumnConfig, len(cols))
	for i, c := range cols {
		columns[i] = ColumnConfig{Name: c.Name, Kind: c.Kind.String()}
	}
	tree := adapter.NewTreeModel()
	forest := adapter.NewForestModel()
	return &Config{
		Label:   dataset.NHANESLabel,
		Columns: columns,
		Grid: GridConfig{
			FeatureA:   "Age",
			FeatureB:   "BMI",
			Resolution: grid.DefaultResolution,
		},
		Models: []ModelConfig{
			{Name: KindNull, Kind: KindNull, Formula: "Diabetes ~ Age + BMI"},
			{Name: KindTree, Kind: KindTree, Formula: "Diabetes ~ .", Tree: &TreeConfig{
				MinImpurityDecrease: tree.MinImpurityDecrease,
				MinSamplesLeaf:      tree.MinSamplesLeaf,
				Criterion:           tree.Criterion,
			}},
			{Name: KindForest, Kind: KindForest, Formula: "Diabetes ~ .", Forest: &ForestConfig{
				NTree: forest.NTree,
				MTry:  forest.MTry,
				Seed:  forest.Seed,
			}},
			{Name: KindKNN, Kind: KindKNN, Formula: "Diabetes ~ Age + BMI", KNN: &KNNConfig{
				K: adapter.DefaultK,
			}},
		},
		LogLevel: "info",
	}
}

// Load reads and validates a YAML file. Fields absent from the file keep their
// Default values; a models list in the file replaces the default models.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mlerrors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document on top of Default. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Models = nil
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, mlerrors.NewConfigError("yaml", err.Error(), nil)
	}
	if cfg.Models == nil {
		cfg.Models = Default().Models
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, mlerrors.Wrap(err, "encode config")
	}
	return out, nil
}

// Validate checks everything that does not depend on the data. Problems are
// ConfigErrors naming the offending parameter.
func (c *Config) Validate() error {
	if c.Label == "" {
		return mlerrors.NewConfigError("label", "must be set", c.Label)
	}
	if _, err := c.DatasetColumns(); err != nil {
		return err
	}
	if c.Grid.Resolution < 2 {
		return mlerrors.NewConfigError("grid.resolution", "must be >= 2", c.Grid.Resolution)
	}
	if c.Grid.FeatureA == "" || c.Grid.FeatureB == "" {
		return mlerrors.NewConfigError("grid", "both features must be set", c.Grid)
	}
	if c.Grid.FeatureA == c.Grid.FeatureB {
		return mlerrors.NewConfigError("grid", "features must differ", c.Grid.FeatureA)
	}
	if c.Workers < 0 {
		return mlerrors.NewConfigError("workers", "must be >= 0", c.Workers)
	}
	if len(c.Models) == 0 {
		return mlerrors.NewConfigError("models", "at least one model is required", nil)
	}
	_, err := c.Build()
	return err
}

// DatasetColumns converts the column declarations.
func (c *Config) DatasetColumns() ([]dataset.Column, error) {
	if len(c.Columns) == 0 {
		return nil, mlerrors.NewConfigError("columns", "at least one column is required", nil)
	}
	out := make([]dataset.Column, len(c.Columns))
	for i, col := range c.Columns {
		if col.Name == "" {
			return nil, mlerrors.NewConfigError(fmt.Sprintf("columns[%d].name", i), "must be set", col.Name)
		}
		switch strings.ToLower(col.Kind) {
		case "continuous", "":
			out[i] = dataset.Column{Name: col.Name, Kind: dataset.Continuous}
		case "categorical":
			out[i] = dataset.Column{Name: col.Name, Kind: dataset.Categorical}
		default:
			return nil, mlerrors.NewConfigError(fmt.Sprintf("columns[%d].kind", i),
				"must be continuous or categorical", col.Kind)
		}
	}
	return out, nil
}

// PrepareOptions returns the dataset options implied by the config.
func (c *Config) PrepareOptions() []dataset.Option {
	var opts []dataset.Option
	if c.PositiveLabel != "" {
		opts = append(opts, dataset.WithPositiveLabel(c.PositiveLabel))
	}
	return opts
}

// Entry is a configured model ready to fit.
type Entry struct {
	Name    string
	Adapter adapter.Adapter
	Formula adapter.Formula
}

// Build turns the model list into adapters. Model names must be unique.
func (c *Config) Build() ([]Entry, error) {
	entries := make([]Entry, 0, len(c.Models))
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		name := m.Name
		if name == "" {
			name = m.Kind
		}
		if seen[name] {
			return nil, mlerrors.NewConfigError(fmt.Sprintf("models[%d].name", i), "duplicate model name", name)
		}
		seen[name] = true

		formula, err := adapter.ParseFormula(m.Formula)
		if err != nil {
			return nil, err
		}
		a, err := m.adapter()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: name, Adapter: a, Formula: formula})
	}
	return entries, nil
}

func (m ModelConfig) adapter() (adapter.Adapter, error) {
	switch m.Kind {
	case KindNull:
		return adapter.NullModel{}, nil
	case KindTree:
		t := adapter.NewTreeModel()
		if m.Tree != nil {
			t.MinImpurityDecrease = m.Tree.MinImpurityDecrease
			t.MinSamplesLeaf = m.Tree.MinSamplesLeaf
			if m.Tree.Criterion != "" {
				t.Criterion = m.Tree.Criterion
			}
		}
		return t, t.Validate()
	case KindForest:
		f := adapter.NewForestModel()
		if m.Forest != nil {
			f.NTree = m.Forest.NTree
			f.MTry = m.Forest.MTry
			f.Seed = m.Forest.Seed
			f.Workers = m.Forest.Workers
		}
		return f, f.Validate()
	case KindKNN:
		k := adapter.NewNeighborModel()
		if m.KNN != nil {
			k.K = m.KNN.K
			k.Standardize = m.KNN.Standardize
		}
		return k, k.Validate()
	default:
		return nil, mlerrors.NewConfigError("models.kind", "unknown model kind", m.Kind)
	}
}
