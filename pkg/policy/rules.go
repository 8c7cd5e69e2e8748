package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet holds the explicit deny rules that win regardless of approval
// mode.
type RuleSet struct {
	// DenyTools lists tool names that may never run.
	DenyTools []string `yaml:"deny_tools" json:"deny_tools"`

	// DenyCommandPatterns lists substrings that make a shell command
	// unconditionally denied.
	DenyCommandPatterns []string `yaml:"deny_command_patterns" json:"deny_command_patterns"`
}

// DefaultRuleSet returns the built-in deny rules for obviously destructive
// shell commands.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		DenyCommandPatterns: []string{
			"rm -rf /",
			"rm -fr /",
			"mkfs",
			"dd if=",
			":(){ :|:& };:",
			"> /dev/sda",
			"chmod -R 777 /",
		},
	}
}

// LoadRuleSet reads a YAML rule file and merges it over the defaults.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	loaded := &RuleSet{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	merged := DefaultRuleSet()
	merged.DenyTools = append(merged.DenyTools, loaded.DenyTools...)
	merged.DenyCommandPatterns = append(merged.DenyCommandPatterns, loaded.DenyCommandPatterns...)

	return merged, nil
}

// DeniesTool reports whether a tool name is explicitly denied.
func (rs *RuleSet) DeniesTool(name string) bool {
	for _, denied := range rs.DenyTools {
		if denied == name || denied == "*" {
			return true
		}
	}
	return false
}

// DeniedCommandPattern returns the first deny pattern matching the shell
// command, or an empty string when none match. A pattern matches as a
// literal substring, or when its whitespace-split tokens each prefix a
// command field in order, so "curl | sh" catches "curl https://x.sh | sh".
func (rs *RuleSet) DeniedCommandPattern(command string) string {
	fields := strings.Fields(command)
	for _, pattern := range rs.DenyCommandPatterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(command, pattern) || tokensMatchFields(strings.Fields(pattern), fields) {
			return pattern
		}
	}
	return ""
}

// tokensMatchFields reports whether every token prefixes some command
// field, scanning left to right. Prefix matching keeps "mkfs" catching
// "mkfs.ext4" without letting "/" match "./build".
func tokensMatchFields(tokens, fields []string) bool {
	if len(tokens) == 0 {
		return false
	}
	i := 0
	for _, token := range tokens {
		for {
			if i >= len(fields) {
				return false
			}
			field := fields[i]
			i++
			if strings.HasPrefix(field, token) {
				break
			}
		}
	}
	return true
}
