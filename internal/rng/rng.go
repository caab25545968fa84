// Package rng provides the uniform random streams that drive the solver.
// Every stream can serialise its state so a checkpointed run replays the
// same draws after restore.
package rng

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mathext/prng"
)

var (
	ErrUnknownSource = errors.New("rng: unknown source")
	ErrBadState      = errors.New("rng: malformed state")
)

// Source is a seeded uniform stream.
type Source interface {
	Name() string
	Uint64() uint64
	// Float64 returns a value in [0, 1).
	Float64() float64
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

type stateSource interface {
	rand.Source
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

var sources = map[string]func(seed uint64) stateSource{
	"mt19937": func(seed uint64) stateSource {
		mt := prng.NewMT19937()
		mt.Seed(seed)
		return mt
	},
	"pcg": func(seed uint64) stateSource {
		return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	},
	"chacha8": func(seed uint64) stateSource {
		var key [32]byte
		binary.LittleEndian.PutUint64(key[:], seed)
		return rand.NewChaCha8(key)
	},
}

// Names lists the registered sources.
func Names() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the named source seeded with seed.
func New(name string, seed uint64) (Source, error) {
	mk, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	src := mk(seed)
	return &stream{name: name, src: src, r: rand.New(src)}, nil
}

type stream struct {
	name string
	src  stateSource
	r    *rand.Rand
}

func (s *stream) Name() string     { return s.name }
func (s *stream) Uint64() uint64   { return s.src.Uint64() }
func (s *stream) Float64() float64 { return s.r.Float64() }

func (s *stream) MarshalBinary() ([]byte, error) { return s.src.MarshalBinary() }

func (s *stream) UnmarshalBinary(data []byte) error {
	if err := s.src.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadState, s.name, err)
	}
	return nil
}

// Open01 returns a uniform value in (0, 1], safe as a logarithm argument.
func Open01(s Source) float64 { return 1 - s.Float64() }

// Exp draws an exponential waiting time for the given rate.
func Exp(s Source, rate float64) float64 { return -math.Log(Open01(s)) / rate }
