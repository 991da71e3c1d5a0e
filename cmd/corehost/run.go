package main

import (
	"context"

	"github.com/danmuck/corehost/internal/admin"
	"github.com/danmuck/corehost/internal/cli"
	"github.com/danmuck/corehost/internal/core"
	"github.com/danmuck/corehost/internal/modules"
	"github.com/danmuck/corehost/internal/stdio"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func (a *app) run(ctx context.Context, args []string) error {
	parsed, err := cli.Parse(args)
	if err != nil {
		return &core.StepError{Step: "args", Err: err}
	}
	parsed = parsed.WithDefaults(map[modules.Role][]string{
		modules.RoleCPU:    a.cfg.CPU.Group(),
		modules.RoleGPU:    a.cfg.GPU.Group(),
		modules.RoleMemory: a.cfg.Memory.Group(),
	})

	for _, r := range parsed.Redirects {
		if err := stdio.Redirect(r.Stream, r.Path); err != nil {
			return &core.StepError{Step: "args", Err: err}
		}
	}

	plan, err := core.ResolvePlan(parsed.Program, parsed.Groups)
	if err != nil {
		return &core.StepError{Step: "resolve", Err: err}
	}

	c := core.NewWithLoader(a.loader)
	defer c.Close()

	log.Info().
		Str("program", plan.Program).
		Str("cpu", plan.CPU.Path).
		Str("gpu", plan.GPU.Path).
		Str("memory", plan.Memory.Path).
		Msg("main.run")

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if a.cfg.AdminAddr != "" {
		var ext admin.ExtensionReporter
		if a.ext != nil {
			ext = a.ext
		}
		srv := admin.New(a.cfg.AdminAddr, c, ext, a.cfg.CorsOrigins)
		// The admin surface is optional; a listen failure never aborts the run.
		g.Go(func() error {
			if err := srv.Serve(runCtx); err != nil {
				log.Error().Err(err).Str("addr", a.cfg.AdminAddr).Msg("main.run admin server failed")
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return c.Run(plan)
	})
	return g.Wait()
}
