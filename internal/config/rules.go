package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules holds the abuse-mitigation lists consulted by the submission
// pipeline. The compiled-in defaults can be overridden per-list from a
// YAML file; an empty list in the file keeps the default.
type Rules struct {
	SpamWords         []string `yaml:"spam_words"`
	DisposableDomains []string `yaml:"disposable_domains"`
	BlockedIPs        []string `yaml:"blocked_ips"`
}

// DefaultRules returns the compiled-in rule lists.
func DefaultRules() *Rules {
	return &Rules{
		SpamWords: []string{
			"casino",
			"viagra",
			"free money",
			"click here",
			"win now",
		},
		DisposableDomains: []string{
			"tempmail.org",
			"10minutemail.com",
			"guerrillamail.com",
			"mailinator.com",
			"temp-mail.org",
		},
	}
}

// LoadRules reads rule overrides from the YAML file at path. An empty
// path returns the defaults unchanged.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	if len(override.SpamWords) > 0 {
		rules.SpamWords = override.SpamWords
	}
	if len(override.DisposableDomains) > 0 {
		rules.DisposableDomains = override.DisposableDomains
	}
	rules.BlockedIPs = append(rules.BlockedIPs, override.BlockedIPs...)

	return rules, nil
}
