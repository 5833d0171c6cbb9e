// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/pdiddy/figurescout/internal/logging"
	"github.com/pdiddy/figurescout/internal/projectstore"
	"github.com/pdiddy/figurescout/internal/scout"
	"github.com/pdiddy/figurescout/internal/secrets"
	"github.com/pdiddy/figurescout/internal/sidecache"
	"github.com/pdiddy/figurescout/internal/workspace"
	"github.com/pdiddy/figurescout/pkg/types"
)

// loadConfig decodes viper settings into a Config and fills credentials
// from the secrets directory when the config leaves them empty.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.API.Token = secretDefault(secrets.APIToken, cfg.API.Token)
	cfg.Cache.RedisPassword = secretDefault(secrets.RedisPassword, cfg.Cache.RedisPassword)
	return cfg, nil
}

// app holds the components one command invocation works with.
type app struct {
	cfg      types.Config
	log      logging.Logger
	client   *scout.Client
	projects projectstore.Store
	cache    sidecache.Cache
	ws       *workspace.Workspace
}

// newApp builds the components from config. Overrides adjust the config
// before anything is constructed, typically from command flags.
func newApp(overrides ...func(*types.Config)) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	client := scout.New(cfg.API, log)
	projects, err := projectstore.New(cfg.ProjectStore, client)
	if err != nil {
		return nil, err
	}
	cache, err := sidecache.New(cfg.Cache, log.With(logging.String("component", "sidecache")))
	if err != nil {
		projects.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		client:   client,
		projects: projects,
		cache:    cache,
	}
	a.ws = workspace.New(workspace.Options{
		Backend:  client,
		Projects: projects,
		Cache:    cache,
		Enrich:   cfg.Enrich,
		Log:      log,
	})
	return a, nil
}

func (a *app) Close() {
	if err := a.projects.Close(); err != nil {
		a.log.Warn("closing project store", logging.Err(err))
	}
	if c, ok := a.cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("closing side-cache", logging.Err(err))
		}
	}
	_ = a.log.Sync()
}

// activate makes a project active for the command. With an explicit id the
// side-cache snapshot is used when it is fresh and belongs to that project;
// otherwise the project is loaded from the store. Without an id the last
// active project is restored from the side-cache.
func (a *app) activate(ctx context.Context, args []string) (types.Project, error) {
	var id string
	if len(args) > 0 {
		id = args[0]
	}

	p, err := a.ws.Resume(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sidecache.ErrMiss) {
		a.log.Warn("side-cache unavailable", logging.Err(err))
	}
	if id == "" {
		return types.Project{}, fmt.Errorf("no recent project in the side-cache: pass a project id (see 'figurescout project list')")
	}
	return a.ws.LoadProject(ctx, id)
}

func printProjectSummary(p types.Project) {
	c := p.Counters()
	fmt.Fprintf(os.Stdout, "Project %s  %q\n", p.ID, p.Name)
	fmt.Fprintf(os.Stdout, "  keyword:   %s (%d years)\n", p.Keyword, p.Years)
	fmt.Fprintf(os.Stdout, "  records:   %d\n", c.Total)
	fmt.Fprintf(os.Stdout, "  processed: %d (%d%%)\n", c.Processed, c.Percent())
	fmt.Fprintf(os.Stdout, "  full text: %d\n", c.Fulltext)
}
