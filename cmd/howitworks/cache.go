package main

import (
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/howitworks/internal/output"
	"github.com/panbanda/howitworks/pkg/config"
)

func cacheCmd() *cli.Command {
	rootFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:  "root",
			Usage: "Analysis root a relative cache directory lives under",
		}
	}
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the analysis result cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show how many results are cached and how old they are",
				Flags:  []cli.Flag{rootFlag()},
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached result",
				Flags:  []cli.Flag{rootFlag()},
				Action: runCacheClear,
			},
		},
	}
}

// loadCacheConfig loads the configuration for the cache commands. They
// manage the cache directly, so --no-cache and cache.enabled do not apply.
func loadCacheConfig(c *cli.Context) (*config.Config, error) {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	cfg.Cache.Enabled = true
	return cfg, nil
}

func runCacheStats(c *cli.Context) error {
	cfg, err := loadCacheConfig(c)
	if err != nil {
		return err
	}
	ch, err := openCache(cfg)
	if err != nil {
		return err
	}
	stats, err := ch.GetStats()
	if err != nil {
		return err
	}

	dir := cacheDir(cfg)
	age := func(d time.Duration) string {
		if stats.Entries == 0 {
			return "-"
		}
		return d.Round(time.Second).String()
	}
	table := output.NewTable("Result Cache",
		[]string{"Directory", "Entries", "Size", "Oldest", "Newest"},
		[][]string{{
			dir,
			strconv.Itoa(stats.Entries),
			strconv.FormatInt(stats.TotalSize, 10),
			age(stats.OldestAge),
			age(stats.NewestAge),
		}},
		nil,
		map[string]any{
			"dir":        dir,
			"entries":    stats.Entries,
			"total_size": stats.TotalSize,
			"oldest_age": stats.OldestAge.String(),
			"newest_age": stats.NewestAge.String(),
		})

	out, err := newOutput(c, cfg)
	if err != nil {
		return err
	}
	defer out.Close()
	return out.WriteTable(table)
}

func runCacheClear(c *cli.Context) error {
	cfg, err := loadCacheConfig(c)
	if err != nil {
		return err
	}
	ch, err := openCache(cfg)
	if err != nil {
		return err
	}
	if err := ch.Clear(); err != nil {
		return err
	}
	statusFormatter(c.App.Writer).Success("Cleared cache %s", cacheDir(cfg))
	return nil
}
