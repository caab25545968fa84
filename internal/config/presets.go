package config

import (
	"slices"
)

// Volumes in cubic metres. 1e-18 m^3 is one femtolitre.
var Presets = map[string]*Config{
	"annihilation": {
		Name:    "annihilation",
		Species: []string{"A", "B"},
		Volsys: []VolsysConfig{{
			ID:        "vsys",
			Reactions: []ReacConfig{{ID: "annihilate", LHS: []string{"A", "B"}, K: 1e10}},
		}},
		Geometry: GeometryConfig{Compartments: []CompConfig{{ID: "cyt", Volume: 1e-18, Volsys: []string{"vsys"}}}},
		Initial: []InitialConfig{
			{Where: "cyt", Species: "A", Count: 100},
			{Where: "cyt", Species: "B", Count: 100},
		},
		Solver: SolverConfig{Scheduler: "direct", RNG: "mt19937", Seed: 1, EndTime: 1, SampleDt: 0.01, Replicates: 1},
	},
	"dimerization": {
		Name:    "dimerization",
		Species: []string{"A", "B"},
		Volsys: []VolsysConfig{{
			ID:        "vsys",
			Reactions: []ReacConfig{{ID: "dimerize", LHS: []string{"A", "A"}, RHS: []string{"B"}, K: 1e6}},
		}},
		Geometry: GeometryConfig{Compartments: []CompConfig{{ID: "cyt", Volume: 1e-18, Volsys: []string{"vsys"}}}},
		Initial:  []InitialConfig{{Where: "cyt", Species: "A", Count: 1000}},
		Solver:   SolverConfig{Scheduler: "direct", RNG: "mt19937", Seed: 1, EndTime: 5, SampleDt: 0.05, Replicates: 1},
	},
	"decay": {
		Name:    "decay",
		Species: []string{"A"},
		Volsys: []VolsysConfig{{
			ID:        "vsys",
			Reactions: []ReacConfig{{ID: "decay", LHS: []string{"A"}, K: 0.5}},
		}},
		Geometry: GeometryConfig{Compartments: []CompConfig{{ID: "cyt", Volume: 1e-18, Volsys: []string{"vsys"}}}},
		Initial:  []InitialConfig{{Where: "cyt", Species: "A", Count: 1000}},
		Solver:   SolverConfig{Scheduler: "direct", RNG: "mt19937", Seed: 1, EndTime: 10, SampleDt: 0.1, Replicates: 1},
	},
	"birth_death": {
		Name:    "birth_death",
		Species: []string{"A"},
		Volsys: []VolsysConfig{{
			ID: "vsys",
			Reactions: []ReacConfig{
				{ID: "birth", RHS: []string{"A"}, K: 1.66e-10},
				{ID: "death", LHS: []string{"A"}, K: 0.5},
			},
		}},
		Geometry: GeometryConfig{Compartments: []CompConfig{{ID: "cyt", Volume: 1e-16, Volsys: []string{"vsys"}}}},
		Solver:   SolverConfig{Scheduler: "tree", RNG: "mt19937", Seed: 1, EndTime: 20, SampleDt: 0.1, Replicates: 4},
	},
	"enzyme": {
		Name:    "enzyme",
		Species: []string{"E", "S", "ES", "P"},
		Volsys: []VolsysConfig{{
			ID: "vsys",
			Reactions: []ReacConfig{
				{ID: "bind", LHS: []string{"E", "S"}, RHS: []string{"ES"}, K: 1e7},
				{ID: "unbind", LHS: []string{"ES"}, RHS: []string{"E", "S"}, K: 1},
				{ID: "catalyse", LHS: []string{"ES"}, RHS: []string{"E", "P"}, K: 10},
			},
		}},
		Geometry: GeometryConfig{Compartments: []CompConfig{{ID: "cyt", Volume: 1e-18, Volsys: []string{"vsys"}}}},
		Initial: []InitialConfig{
			{Where: "cyt", Species: "E", Count: 50},
			{Where: "cyt", Species: "S", Count: 500},
		},
		Solver: SolverConfig{Scheduler: "direct", RNG: "mt19937", Seed: 1, EndTime: 20, SampleDt: 0.1, Replicates: 1},
	},
	"membrane": {
		Name:    "membrane",
		Species: []string{"L", "R", "LR"},
		Volsys: []VolsysConfig{{
			ID:        "ext_sys",
			Reactions: []ReacConfig{{ID: "degrade", LHS: []string{"L"}, K: 0.01}},
		}},
		Surfsys: []SurfsysConfig{{
			ID: "memb_sys",
			Reactions: []SReacConfig{
				{ID: "bind", OLHS: []string{"L"}, SLHS: []string{"R"}, SRHS: []string{"LR"}, K: 1e6},
				{ID: "release", SLHS: []string{"LR"}, SRHS: []string{"R"}, IRHS: []string{"L"}, K: 0.5},
			},
		}},
		Geometry: GeometryConfig{
			Compartments: []CompConfig{
				{ID: "cyt", Volume: 1e-18},
				{ID: "ext", Volume: 2e-18, Volsys: []string{"ext_sys"}},
			},
			Patches: []PatchConfig{{ID: "memb", Area: 1e-12, IComp: "cyt", OComp: "ext", Surfsys: []string{"memb_sys"}}},
		},
		Initial: []InitialConfig{
			{Where: "ext", Species: "L", Count: 1000},
			{Where: "memb", Species: "R", Count: 200},
		},
		Solver: SolverConfig{Scheduler: "direct", RNG: "mt19937", Seed: 1, EndTime: 10, SampleDt: 0.1, Replicates: 1},
	},
	"diffusion_pair": {
		Name:    "diffusion_pair",
		Species: []string{"X"},
		Volsys: []VolsysConfig{{
			ID:         "vsys",
			Diffusions: []DiffConfig{{ID: "diffX", Species: "X", D: 1e-12}},
		}},
		Geometry: GeometryConfig{
			Mesh: &MeshConfig{
				Scale:    1e-6,
				Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}},
				Tets:     [][4]int{{0, 1, 2, 3}, {1, 2, 3, 4}},
			},
			Compartments: []CompConfig{{ID: "cyt", Tets: []int{0, 1}, Volsys: []string{"vsys"}}},
		},
		Initial: []InitialConfig{{Where: "cyt", Species: "X", Count: 100, Tets: []int{0}}},
		Solver:  SolverConfig{Scheduler: "direct", RNG: "mt19937", Seed: 1, EndTime: 1, SampleDt: 0.01, Replicates: 1},
	},
	"diffusion_cube": {
		Name:    "diffusion_cube",
		Species: []string{"X", "Xb"},
		Volsys: []VolsysConfig{{
			ID:         "vsys",
			Diffusions: []DiffConfig{{ID: "diffX", Species: "X", D: 1e-12}},
		}},
		Surfsys: []SurfsysConfig{{
			ID:        "floor_sys",
			Reactions: []SReacConfig{{ID: "adsorb", ILHS: []string{"X"}, SRHS: []string{"Xb"}, K: 0.5}},
		}},
		Geometry: GeometryConfig{
			Mesh: &MeshConfig{
				Scale: 1e-6,
				Vertices: [][3]float64{
					{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
					{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
				},
				Tets: [][4]int{{0, 1, 2, 4}, {3, 1, 2, 7}, {5, 1, 4, 7}, {6, 2, 4, 7}, {1, 2, 4, 7}},
			},
			Compartments: []CompConfig{{ID: "cyt", Tets: []int{0, 1, 2, 3, 4}, Volsys: []string{"vsys"}}},
			Patches: []PatchConfig{{
				ID: "floor", Tris: [][3]int{{0, 1, 2}, {1, 2, 3}}, IComp: "cyt", Surfsys: []string{"floor_sys"},
			}},
		},
		Initial: []InitialConfig{{Where: "cyt", Species: "X", Count: 500, Tets: []int{2}}},
		Solver:  SolverConfig{Scheduler: "tree", RNG: "mt19937", Seed: 1, EndTime: 2, SampleDt: 0.02, Replicates: 1},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
