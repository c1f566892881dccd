package infra

import (
	"sort"
	"time"

	"extract-gateway/gating/domain"
)

// cloneKey copia os ponteiros de tempo para ninguém alterar o registro por fora.
func cloneKey(k domain.APIKey) domain.APIKey {
	k.LastUsedAt = cloneTime(k.LastUsedAt)
	k.RevokedAt = cloneTime(k.RevokedAt)
	return k
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sortKeys(keys []domain.APIKey) {
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].CreatedAt.Before(keys[j].CreatedAt)
		}
		return keys[i].ID < keys[j].ID
	})
}
