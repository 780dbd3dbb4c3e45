// Package theme loads the static look-and-feel settings of the dashboard.
package theme

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTheme []byte

// Theme is read once at startup and never modified afterwards.
type Theme struct {
	Title      string `yaml:"title" validate:"required,max=120"`
	Caption    string `yaml:"caption" validate:"max=500"`
	Layout     string `yaml:"layout" validate:"required,oneof=wide centered"`
	FontFamily string `yaml:"font_family" validate:"required"`
	Colors     Colors `yaml:"colors"`
	Charts     Charts `yaml:"charts"`
}

// Colors are hex colors like "#FF4136".
type Colors struct {
	Background string   `yaml:"background" validate:"required,hexcolor"`
	Surface    string   `yaml:"surface" validate:"required,hexcolor"`
	Text       string   `yaml:"text" validate:"required,hexcolor"`
	Muted      string   `yaml:"muted" validate:"required,hexcolor"`
	Grid       string   `yaml:"grid" validate:"required,hexcolor"`
	Accent     string   `yaml:"accent" validate:"required,hexcolor"`
	Bar        string   `yaml:"bar" validate:"required,hexcolor"`
	Palette    []string `yaml:"palette" validate:"required,min=1,dive,hexcolor"`
}

// Charts holds rendered chart dimensions in pixels.
type Charts struct {
	Width   int `yaml:"width" validate:"required,min=200,max=4000"`
	Height  int `yaml:"height" validate:"required,min=150,max=3000"`
	PieSize int `yaml:"pie_size" validate:"required,min=150,max=3000"`
}

// Default returns the embedded theme.
func Default() *Theme {
	t, err := Parse(defaultTheme)
	if err != nil {
		panic(fmt.Sprintf("embedded theme is invalid: %v", err))
	}
	return t
}

// Load reads a theme file. An empty path yields the embedded default. Keys missing
// from the file keep their default values.
func Load(path string) (*Theme, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("theme %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes YAML on top of the default theme and validates the result.
func Parse(data []byte) (*Theme, error) {
	t := &Theme{}
	if err := yaml.Unmarshal(defaultTheme, t); err != nil {
		return nil, fmt.Errorf("decode default theme: %w", err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("decode theme: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks colors, layout and chart sizes.
func (t *Theme) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		return fmt.Errorf("invalid theme: %w", err)
	}
	return nil
}

// Centered reports whether the page uses the narrow layout.
func (t *Theme) Centered() bool {
	return t.Layout == "centered"
}
