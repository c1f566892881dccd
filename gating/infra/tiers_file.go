package infra

import (
	"fmt"
	"os"
	"strings"

	"extract-gateway/gating/domain"

	"gopkg.in/yaml.v3"
)

// Formato do arquivo de tiers:
//
//	tiers:
//	  free:
//	    requests_per_minute: 10
//	    monthly_request_limit: 100
//	  enterprise:
//	    requests_per_minute: 300
//	    monthly_request_limit: unlimited
type tiersFile struct {
	Tiers map[string]tierEntry `yaml:"tiers"`
}

type tierEntry struct {
	RequestsPerMinute   int        `yaml:"requests_per_minute"`
	MonthlyRequestLimit limitValue `yaml:"monthly_request_limit"`
	DailyRequestLimit   limitValue `yaml:"daily_request_limit"`
}

// limitValue aceita um inteiro ou a palavra "unlimited".
type limitValue int64

func (v *limitValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && strings.EqualFold(strings.TrimSpace(node.Value), "unlimited") {
		*v = limitValue(domain.Unlimited)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("line %d: limit must be an integer or \"unlimited\"", node.Line)
	}
	*v = limitValue(n)
	return nil
}

// ParseTiers decodifica e valida a tabela de tiers.
func ParseTiers(raw []byte) (domain.Tiers, error) {
	var f tiersFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return domain.Tiers{}, fmt.Errorf("%w: %v", domain.ErrInvalidTierConfig, err)
	}
	m := make(map[domain.Tier]domain.TierLimits, len(f.Tiers))
	for name, e := range f.Tiers {
		m[domain.Tier(strings.TrimSpace(name))] = domain.TierLimits{
			RequestsPerMinute:   e.RequestsPerMinute,
			MonthlyRequestLimit: int64(e.MonthlyRequestLimit),
			DailyRequestLimit:   int64(e.DailyRequestLimit),
		}
	}
	return domain.NewTiers(m)
}

// LoadTiersFile lê o arquivo uma vez no boot. path vazio = tiers padrão.
func LoadTiersFile(path string) (domain.Tiers, error) {
	if strings.TrimSpace(path) == "" {
		return domain.DefaultTiers(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Tiers{}, fmt.Errorf("read tiers file: %w", err)
	}
	return ParseTiers(raw)
}
