package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Profile is a run profile loaded from yaml. String values may contain
// placeholders which are resolved against the forwarded command line
// arguments before decoding, so a broken reference fails the whole run
// before any scene or engine work starts.
type Profile struct {
	Setup struct {
		Seed       int64  `yaml:"seed"`
		Resolution [2]int `yaml:"resolution"`
	} `yaml:"setup"`
	Engine struct {
		Address    string `yaml:"address"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"engine"`
	Output struct {
		Dir        string  `yaml:"dir"`
		ChunkSize  int     `yaml:"chunk_size"`
		DepthScale float64 `yaml:"depth_scale"`
	} `yaml:"output"`
}

func LoadProfile(path string, args []string) (*Profile, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read profile %q", path)
	}
	p, err := ParseProfile(data, args)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load profile %q", path)
	}
	return p, nil
}

func ParseProfile(data []byte, args []string) (*Profile, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse yaml")
	}

	if err := resolveNodePlaceholders(&root, args); err != nil {
		return nil, err
	}

	p := &Profile{}
	p.Setup.Seed = Seed()
	p.Setup.Resolution = [2]int{resWidth, resHeight}
	p.Output.ChunkSize = DefaultChunkSize
	p.Output.DepthScale = DefaultDepthScale

	if len(root.Content) != 0 {
		if err := root.Decode(p); err != nil {
			return nil, errors.Wrapf(err, "Failed to decode profile")
		}
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func resolveNodePlaceholders(node *yaml.Node, args []string) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		resolved, err := ResolvePlaceholders(node.Value, args)
		if err != nil {
			return errors.Wrapf(err, "Failed to resolve placeholder at line %d column %d", node.Line, node.Column)
		}
		node.Value = resolved
		return nil
	}
	for _, child := range node.Content {
		if err := resolveNodePlaceholders(child, args); err != nil {
			return err
		}
	}
	return nil
}

func (p *Profile) validate() error {
	if p.Setup.Resolution[0] <= 0 || p.Setup.Resolution[1] <= 0 {
		return errors.Errorf("Invalid resolution %dx%d", p.Setup.Resolution[0], p.Setup.Resolution[1])
	}
	if p.Output.ChunkSize <= 0 {
		return errors.Errorf("Invalid chunk size %d", p.Output.ChunkSize)
	}
	if p.Output.DepthScale <= 0 {
		return errors.Errorf("Invalid depth scale %v", p.Output.DepthScale)
	}
	if p.Engine.TimeoutSec < 0 {
		return errors.Errorf("Invalid engine timeout %d", p.Engine.TimeoutSec)
	}
	return nil
}

// Apply copies the profile into the process wide settings.
func (p *Profile) Apply() error {
	SetSeed(p.Setup.Seed)
	if err := SetResolution(p.Setup.Resolution[0], p.Setup.Resolution[1]); err != nil {
		return err
	}
	if err := SetChunkSize(p.Output.ChunkSize); err != nil {
		return err
	}
	return SetDepthScale(p.Output.DepthScale)
}
