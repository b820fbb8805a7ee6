package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"brandkit/internal/api"
	"brandkit/internal/config"
	"brandkit/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) jsonMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// log returns a stderr logger honoring --log-level.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		level := "warn"
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			level = *c.logLevelFlag
		}
		logger, err := logging.New(logging.Options{
			Level:       level,
			Format:      "console",
			OutputPaths: []string{"stderr"},
		})
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logging.NewComponentLogger(logger, "cli")
	})
	return c.logger
}

func (c *commandContext) client() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(cfg.API.Bind, cfg.API.Token)
	if err != nil {
		return nil, fmt.Errorf("daemon address %q: %w", cfg.API.Bind, err)
	}
	return client, nil
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	return c.wrapDaemonError(fn(client))
}

func (c *commandContext) wrapDaemonError(err error) error {
	if err == nil {
		return nil
	}
	if api.IsUnavailable(err) {
		bind := ""
		if c.config != nil {
			bind = c.config.API.Bind
		}
		c.log().Debug("daemon unreachable", logging.String("bind", bind), logging.Error(err))
		return fmt.Errorf("connect to daemon at %s: not running? start it with `brandkitd`", bind)
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Kind != "" {
		return fmt.Errorf("%s: %s", apiErr.Kind, apiErr.Message)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
