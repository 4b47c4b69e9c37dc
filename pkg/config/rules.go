package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RulesConfig holds the cluster gating rules.
type RulesConfig struct {
	Rules map[string]GateRule `yaml:"rules"`
	// NegativeValue is assigned by negative outcomes unless a rule sets
	// its own.
	NegativeValue string `yaml:"negative_value,omitempty"`
}

// GateRule maps the answer of one gating question to an effect on a
// target cluster or sub-cluster.
type GateRule struct {
	Gate           string       `yaml:"gate"`
	Description    string       `yaml:"description,omitempty"`
	Positive       []string     `yaml:"positive"`
	Negative       []string     `yaml:"negative"`
	Target         RuleTarget   `yaml:"target"`
	PositivePolicy PolicyConfig `yaml:"positive_policy,omitempty"`
	NegativePolicy PolicyConfig `yaml:"negative_policy,omitempty"`
}

// RuleTarget selects the questions a rule acts on: every question of
// Cluster, optionally narrowed to the inclusive id range From..To.
type RuleTarget struct {
	Cluster string `yaml:"cluster" json:"cluster"`
	From    string `yaml:"from,omitempty" json:"from,omitempty"`
	To      string `yaml:"to,omitempty" json:"to,omitempty"`
}

// PolicyConfig sets the values an outcome assigns. An empty Value means
// each question's own default; Overrides pin values per question id.
type PolicyConfig struct {
	Value     string            `yaml:"value,omitempty"`
	Overrides map[string]string `yaml:"overrides,omitempty"`
}

// LoadRulesConfig reads gating rules from a YAML file.
func LoadRulesConfig(path string) (*RulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyRulesDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultRulesConfig returns the gating rules for the built-in catalog.
func DefaultRulesConfig() *RulesConfig {
	no := []string{"No", "Not applicable*", "N/A"}
	cfg := &RulesConfig{
		Rules: map[string]GateRule{
			"privacy": {
				Gate:        "2.6",
				Description: "personal data processing brings the privacy section into scope",
				Positive:    []string{"Yes*"},
				Negative:    no,
				Target:      RuleTarget{Cluster: "4"},
			},
			"cloud-hosting": {
				Gate:        "5.1",
				Description: "third-party hosting brings cloud provider controls into scope",
				Positive:    []string{"Yes*"},
				Negative:    no,
				Target:      RuleTarget{Cluster: "5"},
			},
			"ai-ml": {
				Gate:        "7.1",
				Description: "AI or machine learning use brings the AI section into scope",
				Positive:    []string{"Yes*"},
				Negative:    no,
				Target:      RuleTarget{Cluster: "7"},
			},
			"generative-ai": {
				Gate:        "7.3",
				Description: "generative AI use brings the generative AI sub-section into scope",
				Positive:    []string{"Yes*"},
				Negative:    no,
				Target:      RuleTarget{Cluster: "7", From: "7.15", To: "7.22"},
			},
			"payment-card": {
				Gate:        "9.1",
				Description: "payment card data brings PCI DSS controls into scope",
				Positive:    []string{"Yes*", "Outsourced*"},
				Negative:    []string{"Not applicable / No credit card data involved", "Not applicable*", "No"},
				Target:      RuleTarget{Cluster: "9"},
				PositivePolicy: PolicyConfig{
					Overrides: map[string]string{"9.2": "No"},
				},
			},
			"subprocessors": {
				Gate:        "11.1",
				Description: "subprocessors bring third-party risk controls into scope",
				Positive:    []string{"Yes*"},
				Negative:    no,
				Target:      RuleTarget{Cluster: "11"},
			},
			"physical": {
				Gate:        "12.1",
				Description: "self-operated facilities bring physical security into scope",
				Positive:    []string{"Yes*"},
				Negative:    no,
				Target:      RuleTarget{Cluster: "12"},
			},
			"health": {
				Gate:        "13.1",
				Description: "protected health information brings HIPAA safeguards into scope",
				Positive:    []string{"Yes*"},
				Negative:    no,
				Target:      RuleTarget{Cluster: "13"},
			},
		},
	}

	applyRulesDefaults(cfg)
	return cfg
}

func applyRulesDefaults(cfg *RulesConfig) {
	if cfg == nil {
		return
	}
	if cfg.NegativeValue == "" {
		cfg.NegativeValue = "Not Applicable"
	}
	for id, r := range cfg.Rules {
		if r.Target.Cluster == "" && r.Gate != "" {
			if idx := strings.Index(r.Gate, "."); idx >= 0 {
				r.Target.Cluster = r.Gate[:idx]
			} else {
				r.Target.Cluster = r.Gate
			}
		}
		if r.NegativePolicy.Value == "" {
			r.NegativePolicy.Value = cfg.NegativeValue
		}
		cfg.Rules[id] = r
	}
}

// RuleIDs returns the rule ids in sorted order.
func (c *RulesConfig) RuleIDs() []string {
	ids := make([]string, 0, len(c.Rules))
	for id := range c.Rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the rule table for structural errors. It does not check
// gate ids against a catalog; see rules.RuleSet.Validate for that.
func (c *RulesConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("rules config is required")
	}
	for _, id := range c.RuleIDs() {
		r := c.Rules[id]
		if strings.TrimSpace(r.Gate) == "" {
			return fmt.Errorf("rule %s: gate is required", id)
		}
		if len(r.Positive) == 0 && len(r.Negative) == 0 {
			return fmt.Errorf("rule %s: at least one trigger is required", id)
		}
		if (r.Target.From == "") != (r.Target.To == "") {
			return fmt.Errorf("rule %s: target range needs both from and to", id)
		}
		seen := make(map[string]struct{}, len(r.Positive))
		for _, p := range r.Positive {
			seen[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
		}
		for _, n := range r.Negative {
			if _, ok := seen[strings.ToLower(strings.TrimSpace(n))]; ok {
				return fmt.Errorf("rule %s: trigger %q is both positive and negative", id, n)
			}
		}
	}
	return nil
}
