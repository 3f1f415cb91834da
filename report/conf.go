package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReconciliationConf configures one reconciliation report run. Blank
// matching conditions mean "everything".
type ReconciliationConf struct {
	Features              []Feature `yaml:"features"`
	UserMatchingCond      string    `yaml:"userMatchingCond"`
	GroupMatchingCond     string    `yaml:"groupMatchingCond"`
	AnyObjectMatchingCond string    `yaml:"anyObjectMatchingCond"`
}

// LoadConf reads a reconciliation configuration from a YAML file. A conf
// listing no features defaults to the full feature set.
func LoadConf(path string) (*ReconciliationConf, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reportlet configuration %s: %w", path, err)
	}

	var conf ReconciliationConf
	if err := yaml.Unmarshal(raw, &conf); err != nil {
		return nil, fmt.Errorf("parsing reportlet configuration %s: %w", path, err)
	}

	for _, feature := range conf.Features {
		if _, known := featureRenderers[feature]; !known {
			return nil, fmt.Errorf("unknown feature %q in %s", feature, path)
		}
	}
	if len(conf.Features) == 0 {
		conf.Features = AllFeatures
	}

	return &conf, nil
}
