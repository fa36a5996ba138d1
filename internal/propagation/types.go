package propagation

import (
	"github.com/varun-un/AetherConnect/internal/orbit"
)

// Result is the outcome of computing one body's path.
type Result struct {
	Name     string
	Elements orbit.Elements
	Path     orbit.Path
	Stats    orbit.Stats
	Err      error
}

// PropConfig holds path computation configuration.
type PropConfig struct {
	Workers int `mapstructure:"workers"` // Worker pool size (default: runtime.NumCPU())
}
