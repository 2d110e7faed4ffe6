package main

import (
	"strings"
	"sync"

	"assembly-ledger/pkg/config"
	"assembly-ledger/pkg/ledger"
	"assembly-ledger/pkg/logger"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	log     logger.Logger
	logErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (logger.Logger, error) {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logErr = err
			return
		}
		c.log, c.logErr = logger.New(logger.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
	})
	return c.log, c.logErr
}

// openLedger opens the configured ledger with the command logger attached.
func (c *commandContext) openLedger() (*config.Config, *ledger.Store, logger.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := c.logger()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := ledger.Open(cfg.Ledger.Path, ledger.WithLogger(log))
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, log, nil
}

func (c *commandContext) close() {
	if c.log != nil {
		_ = c.log.Sync()
	}
}
