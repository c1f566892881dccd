package domain

import (
	"fmt"
	"sort"
)

// Unlimited marca um limite mensal/diário sem teto.
const Unlimited int64 = -1

type TierLimits struct {
	RequestsPerMinute   int   `yaml:"requests_per_minute" json:"requests_per_minute"`
	MonthlyRequestLimit int64 `yaml:"monthly_request_limit" json:"monthly_request_limit"`
	// DailyRequestLimit 0 = sem teto diário; Unlimited também vale.
	DailyRequestLimit int64 `yaml:"daily_request_limit" json:"daily_request_limit"`
}

func (l TierLimits) MonthlyUnlimited() bool { return l.MonthlyRequestLimit == Unlimited }

func (l TierLimits) HasDailyLimit() bool { return l.DailyRequestLimit > 0 }

// Tiers é a tabela de tiers, montada uma vez no boot e somente leitura depois.
// Não há setters: toda a conta de quota depende desses valores ficarem
// estáveis durante o processo.
type Tiers struct {
	limits map[Tier]TierLimits
}

// NewTiers valida e copia a tabela.
func NewTiers(m map[Tier]TierLimits) (Tiers, error) {
	if len(m) == 0 {
		return Tiers{}, fmt.Errorf("%w: no tiers configured", ErrInvalidTierConfig)
	}
	cp := make(map[Tier]TierLimits, len(m))
	for name, l := range m {
		if name == "" {
			return Tiers{}, fmt.Errorf("%w: empty tier name", ErrInvalidTierConfig)
		}
		if l.RequestsPerMinute < 0 {
			return Tiers{}, fmt.Errorf("%w: tier %q: requests_per_minute must be >= 0", ErrInvalidTierConfig, name)
		}
		if l.MonthlyRequestLimit < Unlimited {
			return Tiers{}, fmt.Errorf("%w: tier %q: monthly_request_limit must be >= 0 or -1 (unlimited)", ErrInvalidTierConfig, name)
		}
		if l.DailyRequestLimit < Unlimited {
			return Tiers{}, fmt.Errorf("%w: tier %q: daily_request_limit must be >= 0 or -1 (unlimited)", ErrInvalidTierConfig, name)
		}
		cp[name] = l
	}
	return Tiers{limits: cp}, nil
}

// DefaultTiers são os limites de fábrica.
func DefaultTiers() Tiers {
	t, _ := NewTiers(map[Tier]TierLimits{
		TierFree:       {RequestsPerMinute: 10, MonthlyRequestLimit: 100},
		TierPro:        {RequestsPerMinute: 60, MonthlyRequestLimit: 10_000},
		TierEnterprise: {RequestsPerMinute: 300, MonthlyRequestLimit: Unlimited},
	})
	return t
}

// Lookup resolve o tier. Tier desconhecido é erro de configuração.
func (t Tiers) Lookup(name Tier) (TierLimits, error) {
	l, ok := t.limits[name]
	if !ok {
		return TierLimits{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
	}
	return l, nil
}

func (t Tiers) Names() []Tier {
	out := make([]Tier, 0, len(t.limits))
	for n := range t.limits {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
