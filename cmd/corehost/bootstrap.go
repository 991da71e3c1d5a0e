package main

import (
	"context"

	"github.com/danmuck/corehost/internal/config"
	"github.com/danmuck/corehost/internal/extensions"
	"github.com/danmuck/corehost/internal/home"
	"github.com/danmuck/corehost/internal/logging"
	"github.com/danmuck/corehost/internal/tools"
	"github.com/rs/zerolog/log"
)

// bootstrap resolves home and config. With full set it also repairs the
// home layout, probes host features and loads extensions.
func (a *app) bootstrap(ctx context.Context, full bool) error {
	h, err := home.Resolve("")
	if err != nil {
		return err
	}
	cfg, err := config.LoadHostConfig(config.Path(h.Root))
	if err != nil {
		return err
	}
	if cfg.Home != "" {
		if h, err = home.Resolve(cfg.Home); err != nil {
			return err
		}
	}
	if cfg.LogLevel != "" && !logging.SetLevel(cfg.LogLevel) {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("main.bootstrap unknown log level ignored")
	}
	a.home, a.cfg = h, cfg
	if !full {
		return nil
	}

	if _, err := h.Ensure(a.executable); err != nil {
		return err
	}
	if _, err := h.CheckAndFix(); err != nil {
		return err
	}

	if len(cfg.Features) > 0 {
		probe := tools.NewFeatureProbe(a.runner)
		features := probe.Probe(ctx, cfg.Features...)
		if !probe.HasAll() {
			log.Warn().Strs("missing", features.Missing()).Msg("main.bootstrap host features missing")
		}
	}

	if cfg.Extensions {
		dir := cfg.ExtensionsDir
		if dir == "" {
			dir = h.Extensions()
		}
		a.ext = extensions.New(home.NewDirCache(dir), a.loader)
		report := a.ext.LoadAll()
		log.Info().Str("dir", dir).Msg("main.bootstrap " + report.String())
	}
	return nil
}
