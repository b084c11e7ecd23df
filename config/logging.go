package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kilianp07/essim/infra/logger"
)

func validateLogging(c logger.Config) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	switch strings.ToLower(c.Format) {
	case "json", "console":
		return nil
	}
	return fmt.Errorf("logging: unknown format %s", c.Format)
}
