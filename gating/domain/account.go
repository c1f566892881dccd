package domain

import "time"

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Usage é um contador com a janela de calendário a que pertence
// ("2006-01" para mês, "2006-01-02" para dia, sempre UTC).
type Usage struct {
	Count       int64  `json:"count"`
	WindowStart string `json:"window_start"`
}

// Roll zera o contador se a janela mudou. Retorna true quando houve reset.
// Aplicar duas vezes com a mesma janela é no-op.
func (u *Usage) Roll(window string) bool {
	if u.WindowStart == window {
		return false
	}
	u.Count = 0
	u.WindowStart = window
	return true
}

type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Tier         Tier      `json:"tier"`
	MonthlyUsage Usage     `json:"monthly_usage"`
	DailyUsage   Usage     `json:"daily_usage"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func MonthWindow(t time.Time) string { return t.UTC().Format("2006-01") }

func DayWindow(t time.Time) string { return t.UTC().Format("2006-01-02") }
