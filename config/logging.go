package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger monta o logger dos binários. Com LOG_FILE os logs vão para o
// arquivo (rotacionado) e para stderr; o io.Closer fecha o arquivo.
func (c Config) NewLogger() (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	log := logrus.New()
	log.SetLevel(level)
	if c.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	var closer io.Closer = nopCloser{}
	if c.LogFile != "" {
		rot := &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // dias
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rot))
		closer = rot
	}
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
