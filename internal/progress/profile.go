// profile.go - YAML-tunable progress curves
package progress

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type curveYAML struct {
	Cap        float64 `yaml:"cap"`
	HalfLifeMs int     `yaml:"half_life_ms"`
	WindowMs   int     `yaml:"window_ms"`
}

type profileYAML struct {
	Upload  curveYAML `yaml:"upload"`
	Parse   curveYAML `yaml:"parse"`
	Analyze curveYAML `yaml:"analyze"`
}

// LoadProfile reads stage curves from a YAML file. Missing or zero fields
// fall back to the defaults so a partial file only overrides what it names.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("reading progress profile: %w", err)
	}

	var raw profileYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return profile, fmt.Errorf("parsing progress profile: %w", err)
	}

	applyCurve(&profile.Upload, raw.Upload)
	applyCurve(&profile.Parse, raw.Parse)
	applyCurve(&profile.Analyze, raw.Analyze)

	if err := validate(profile); err != nil {
		return DefaultProfile(), err
	}
	return profile, nil
}

func applyCurve(dst *Curve, src curveYAML) {
	if src.Cap > 0 {
		dst.Cap = src.Cap
	}
	if src.HalfLifeMs > 0 {
		dst.HalfLife = time.Duration(src.HalfLifeMs) * time.Millisecond
	}
	if src.WindowMs > 0 {
		dst.Window = time.Duration(src.WindowMs) * time.Millisecond
	}
}

// validate rejects curves that could fake completion: every cap must stay
// strictly below 100, and the parse cap must not sit below the upload cap.
func validate(p Profile) error {
	for name, c := range map[string]Curve{"upload": p.Upload, "parse": p.Parse, "analyze": p.Analyze} {
		if c.Cap >= 100 {
			return fmt.Errorf("progress profile: %s cap %.1f must be below 100", name, c.Cap)
		}
	}
	if p.Parse.Cap < p.Upload.Cap {
		return fmt.Errorf("progress profile: parse cap %.1f below upload cap %.1f", p.Parse.Cap, p.Upload.Cap)
	}
	return nil
}
