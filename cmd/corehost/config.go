package main

import (
	"flag"
	"fmt"

	"github.com/danmuck/corehost/internal/config"
	"github.com/rs/zerolog/log"
)

func (a *app) configCmd(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("config: expected init, show, validate or path")
	}
	path := config.Path(a.home.Root)

	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("config init", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		force := fs.Bool("force", false, "overwrite an existing config file")
		output := fs.String("output", path, "output path")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := config.WriteTemplate(*output, *force); err != nil {
			return err
		}
		log.Info().Str("path", *output).Msg("main.configCmd wrote template")
		fmt.Fprintln(a.stdout, *output)
		return nil

	case "show":
		out, err := config.Render(a.cfg)
		if err != nil {
			return err
		}
		_, err = a.stdout.Write(out)
		return err

	case "validate":
		target := path
		if len(args) > 1 {
			target = args[1]
		}
		if err := config.CheckStrict(target); err != nil {
			return err
		}
		if _, err := config.LoadHostConfig(target); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "validated %s\n", target)
		return nil

	case "path":
		fmt.Fprintln(a.stdout, path)
		return nil
	}
	return fmt.Errorf("config: unknown subcommand %q", args[0])
}
