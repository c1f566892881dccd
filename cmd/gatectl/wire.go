package main

import (
	"context"
	"fmt"

	"extract-gateway/app"
	"extract-gateway/config"

	"github.com/sirupsen/logrus"
)

// wireFunc devolve o App e quem o fecha ao fim do comando.
type wireFunc func(ctx context.Context) (*app.App, func() error, error)

// wireApp usa a mesma configuração do gateway (env e .env), então o CLI
// enxerga o mesmo store. Com STORE_BACKEND=memory ele só serve para testes.
func wireApp(ctx context.Context) (*app.App, func() error, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("wire app: %w", err)
	}
	return a, a.Close, nil
}
