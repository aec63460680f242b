package config

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay lets the truncate and write of one save collapse into a
// single reload.
const settleDelay = 150 * time.Millisecond

// Changes compares two configs section by section. live names sections the
// running server picks up on reload (analysis parameters, aliases, sources,
// alert rules and webhooks). restart names server sections that only take
// effect after a restart. A nil prev reports every section as changed.
func Changes(prev, next *Config) (live, restart []string) {
	if next == nil {
		return nil, nil
	}
	if prev == nil {
		prev = &Config{}
	}
	diff := func(dst *[]string, name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			*dst = append(*dst, name)
		}
	}
	diff(&live, "analysis.parameters", prev.Analysis.Parameters, next.Analysis.Parameters)
	diff(&live, "analysis.aliases", prev.Analysis.Aliases, next.Analysis.Aliases)
	diff(&live, "sources", prev.Sources, next.Sources)
	diff(&live, "alerts.rules", prev.Alerts.Rules, next.Alerts.Rules)
	diff(&live, "alerts.webhooks", prev.Alerts.Webhooks, next.Alerts.Webhooks)

	diff(&restart, "server.http_port", prev.Server.HTTPPort, next.Server.HTTPPort)
	diff(&restart, "server.auth", prev.Server.Auth, next.Server.Auth)
	diff(&restart, "server.datasets", prev.Server.Datasets, next.Server.Datasets)
	diff(&restart, "server.cors_origins", prev.Server.CORSOrigins, next.Server.CORSOrigins)
	return live, restart
}

// Watch monitors path and calls onChange with the newly loaded Config each
// time a save changes a reloadable section. It runs until ctx is cancelled.
//
// A reload that fails to load or validate is logged and skipped; the previous
// config stays active and onChange is not called. Edits confined to server
// sections are logged as needing a restart and not passed on.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	// Baseline for diffs. A file that does not load yet diffs as all-new.
	active, err := Load(path)
	if err != nil {
		active = nil
	}

	slog.Info("config: watching for changes", "path", path)

	settle := time.NewTimer(settleDelay)
	settle.Stop()

	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			slog.Error("config: reload failed, keeping previous config", "path", path, "err", err)
			return
		}
		live, restart := Changes(active, cfg)
		if len(restart) > 0 {
			slog.Warn("config: server settings changed, restart to apply", "path", path, "sections", restart)
		}
		if len(live) == 0 {
			return
		}
		active = cfg
		slog.Info("config: reloaded", "path", path,
			"sections", live,
			"sources", len(cfg.Sources),
			"alert_rules", len(cfg.Alerts.Rules),
			"unit_margin", cfg.Analysis.Parameters.UnitMargin,
		)
		onChange(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			settle.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic saves arrive as Create after a rename.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// The inode changes on atomic save.
			_ = watcher.Add(path)
			settle.Reset(settleDelay)

		case <-settle.C:
			reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
