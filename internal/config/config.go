package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/kmcsim/internal/geom"
	"github.com/san-kum/kmcsim/internal/model"
	"github.com/san-kum/kmcsim/internal/sim"
)

const (
	DefaultScheduler = "direct"
	DefaultRNG       = "mt19937"
	DefaultSeed      = 1
	DefaultEndTime   = 10.0
	DefaultSampleDt  = 0.1
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Name     string          `yaml:"name"`
	Species  []string        `yaml:"species,flow"`
	Volsys   []VolsysConfig  `yaml:"volsys,omitempty"`
	Surfsys  []SurfsysConfig `yaml:"surfsys,omitempty"`
	Geometry GeometryConfig  `yaml:"geometry"`
	Initial  []InitialConfig `yaml:"initial,omitempty"`
	Solver   SolverConfig    `yaml:"solver"`
}

type ReacConfig struct {
	ID  string   `yaml:"id"`
	LHS []string `yaml:"lhs,flow,omitempty"`
	RHS []string `yaml:"rhs,flow,omitempty"`
	K   float64  `yaml:"k"`
}

type DiffConfig struct {
	ID      string  `yaml:"id"`
	Species string  `yaml:"species"`
	D       float64 `yaml:"d"`
}

type VolsysConfig struct {
	ID         string       `yaml:"id"`
	Reactions  []ReacConfig `yaml:"reactions,omitempty"`
	Diffusions []DiffConfig `yaml:"diffusions,omitempty"`
}

type SReacConfig struct {
	ID   string   `yaml:"id"`
	ILHS []string `yaml:"ilhs,flow,omitempty"`
	OLHS []string `yaml:"olhs,flow,omitempty"`
	SLHS []string `yaml:"slhs,flow,omitempty"`
	IRHS []string `yaml:"irhs,flow,omitempty"`
	SRHS []string `yaml:"srhs,flow,omitempty"`
	ORHS []string `yaml:"orhs,flow,omitempty"`
	K    float64  `yaml:"k"`
}

type SurfsysConfig struct {
	ID        string        `yaml:"id"`
	Reactions []SReacConfig `yaml:"reactions,omitempty"`
}

// CompConfig is a compartment: a volume in cubic metres for well-mixed
// geometries, or a list of tets when a mesh is given.
type CompConfig struct {
	ID     string   `yaml:"id"`
	Volume float64  `yaml:"volume,omitempty"`
	Tets   []int    `yaml:"tets,flow,omitempty"`
	Volsys []string `yaml:"volsys,flow,omitempty"`
}

// PatchConfig is a patch: an area in square metres, or mesh triangles as
// vertex triples.
type PatchConfig struct {
	ID      string   `yaml:"id"`
	Area    float64  `yaml:"area,omitempty"`
	Tris    [][3]int `yaml:"tris,flow,omitempty"`
	IComp   string   `yaml:"icomp"`
	OComp   string   `yaml:"ocomp,omitempty"`
	Surfsys []string `yaml:"surfsys,flow,omitempty"`
}

// MeshConfig holds vertex coordinates, multiplied by Scale to give metres.
type MeshConfig struct {
	Scale    float64      `yaml:"scale"`
	Vertices [][3]float64 `yaml:"vertices,flow"`
	Tets     [][4]int     `yaml:"tets,flow"`
}

type GeometryConfig struct {
	Mesh         *MeshConfig   `yaml:"mesh,omitempty"`
	Compartments []CompConfig  `yaml:"compartments"`
	Patches      []PatchConfig `yaml:"patches,omitempty"`
}

type InitialConfig struct {
	Where   string  `yaml:"where"`
	Species string  `yaml:"species"`
	Count   uint64  `yaml:"count,omitempty"`
	Conc    float64 `yaml:"conc,omitempty"`
	Tets    []int   `yaml:"tets,flow,omitempty"`
	Clamped bool    `yaml:"clamped,omitempty"`
}

type SolverConfig struct {
	Scheduler          string  `yaml:"scheduler,omitempty"`
	RNG                string  `yaml:"rng,omitempty"`
	Seed               uint64  `yaml:"seed"`
	EndTime            float64 `yaml:"end_time,omitempty"`
	SampleDt           float64 `yaml:"sample_dt,omitempty"`
	Replicates         int     `yaml:"replicates,omitempty"`
	Fanout             int     `yaml:"fanout,omitempty"`
	ResyncInterval     uint64  `yaml:"resync_interval,omitempty"`
	CheckpointInterval float64 `yaml:"checkpoint_interval,omitempty"`
}

func DefaultSolver() SolverConfig {
	return SolverConfig{
		Scheduler:  DefaultScheduler,
		RNG:        DefaultRNG,
		Seed:       DefaultSeed,
		EndTime:    DefaultEndTime,
		SampleDt:   DefaultSampleDt,
		Replicates: 1,
	}
}

// DefaultConfig returns the annihilation preset.
func DefaultConfig() *Config {
	return GetPreset("annihilation")
}

// Load reads a model file. Solver settings missing or empty in the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{Solver: DefaultSolver()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Solver.fillDefaults()
	return cfg, nil
}

// fillDefaults replaces zero settings with DefaultSolver values. The seed
// is left alone since zero is a valid seed.
func (s *SolverConfig) fillDefaults() {
	def := DefaultSolver()
	if s.Scheduler == "" {
		s.Scheduler = def.Scheduler
	}
	if s.RNG == "" {
		s.RNG = def.RNG
	}
	if s.EndTime == 0 {
		s.EndTime = def.EndTime
	}
	if s.SampleDt == 0 {
		s.SampleDt = def.SampleDt
	}
	if s.Replicates == 0 {
		s.Replicates = def.Replicates
	}
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("config: marshal: %v", err))
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("config: unmarshal: %v", err))
	}
	return out
}

// Validate checks solver settings and that the model and geometry build.
func (c *Config) Validate() error {
	s := c.Solver
	switch {
	case s.EndTime <= 0:
		return fmt.Errorf("%w: end_time must be positive", ErrInvalidConfig)
	case s.SampleDt <= 0:
		return fmt.Errorf("%w: sample_dt must be positive", ErrInvalidConfig)
	case s.Replicates < 1:
		return fmt.Errorf("%w: replicates must be at least 1", ErrInvalidConfig)
	case s.CheckpointInterval < 0:
		return fmt.Errorf("%w: checkpoint_interval must not be negative", ErrInvalidConfig)
	}
	_, _, err := c.Build()
	return err
}

// Model converts the reaction network.
func (c *Config) Model() *model.Model {
	m := &model.Model{}
	for _, s := range c.Species {
		m.Species = append(m.Species, model.Species{ID: s})
	}
	for _, vs := range c.Volsys {
		v := model.Volsys{ID: vs.ID}
		for _, r := range vs.Reactions {
			v.Reacs = append(v.Reacs, model.Reac{ID: r.ID, LHS: r.LHS, RHS: r.RHS, K: r.K})
		}
		for _, d := range vs.Diffusions {
			v.Diffs = append(v.Diffs, model.Diff{ID: d.ID, Lig: d.Species, D: d.D})
		}
		m.Volsys = append(m.Volsys, v)
	}
	for _, ss := range c.Surfsys {
		s := model.Surfsys{ID: ss.ID}
		for _, r := range ss.Reactions {
			s.SReacs = append(s.SReacs, model.SReac{
				ID: r.ID, ILHS: r.ILHS, OLHS: r.OLHS, SLHS: r.SLHS,
				IRHS: r.IRHS, SRHS: r.SRHS, ORHS: r.ORHS, K: r.K,
			})
		}
		m.Surfsys = append(m.Surfsys, s)
	}
	return m
}

// BuildGeometry creates a well-mixed geometry, or a tetrahedral mesh when
// a mesh section is present.
func (c *Config) BuildGeometry() (geom.Geometry, error) {
	gc := c.Geometry
	if gc.Mesh == nil {
		g := geom.NewWellMixed()
		for _, comp := range gc.Compartments {
			if err := g.AddComp(comp.ID, comp.Volume, comp.Volsys...); err != nil {
				return nil, err
			}
		}
		for _, p := range gc.Patches {
			if err := g.AddPatch(p.ID, p.Area, p.IComp, p.OComp, p.Surfsys...); err != nil {
				return nil, err
			}
		}
		return g, nil
	}

	scale := gc.Mesh.Scale
	if scale == 0 {
		scale = 1
	}
	verts := make([][3]float64, len(gc.Mesh.Vertices))
	for i, v := range gc.Mesh.Vertices {
		verts[i] = [3]float64{v[0] * scale, v[1] * scale, v[2] * scale}
	}
	mesh, err := geom.NewTetMesh(verts, gc.Mesh.Tets)
	if err != nil {
		return nil, err
	}
	for _, comp := range gc.Compartments {
		if err := mesh.AddComp(comp.ID, comp.Tets, comp.Volsys...); err != nil {
			return nil, err
		}
	}
	for _, p := range gc.Patches {
		if err := mesh.AddPatch(p.ID, p.Tris, p.IComp, p.OComp, p.Surfsys...); err != nil {
			return nil, err
		}
	}
	return mesh, nil
}

// Build returns the validated model and its geometry.
func (c *Config) Build() (*model.Model, geom.Geometry, error) {
	m := c.Model()
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	g, err := c.BuildGeometry()
	if err != nil {
		return nil, nil, err
	}
	return m, g, nil
}

// Initials converts the initial conditions for the solver.
func (c *Config) Initials() []sim.Initial {
	out := make([]sim.Initial, len(c.Initial))
	for i, in := range c.Initial {
		out[i] = sim.Initial{
			Where:   in.Where,
			Species: in.Species,
			Count:   in.Count,
			Conc:    in.Conc,
			Tets:    in.Tets,
			Clamped: in.Clamped,
		}
	}
	return out
}

// SolverOptions returns the solver options for this configuration.
func (c *Config) SolverOptions() sim.Options {
	return sim.Options{
		Scheduler:      c.Solver.Scheduler,
		Fanout:         c.Solver.Fanout,
		ResyncInterval: c.Solver.ResyncInterval,
		Initial:        c.Initials(),
	}
}
