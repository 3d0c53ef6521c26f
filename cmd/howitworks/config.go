package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/howitworks/pkg/config"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates a howitworks configuration file for syntax errors and invalid values.

Examples:
  howitworks config validate                        # Validates default config locations
  howitworks -c howitworks.toml config validate     # Validates specific file`,
				Action: runConfigValidate,
			},
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Description: `Shows the merged configuration from defaults and config file.

Examples:
  howitworks config show                        # Show effective config
  howitworks -c howitworks.toml config show     # Show config from specific file`,
				Action: runConfigShow,
			},
		},
	}
}

func loadConfigFile(c *cli.Context) (*config.Config, string, error) {
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	return config.LoadOrDefault(".")
}

func runConfigValidate(c *cli.Context) error {
	status := statusFormatter(c.App.Writer)
	cfg, source, err := loadConfigFile(c)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		status.Error("Configuration validation failed:")
		fmt.Fprintf(c.App.Writer, "  - %s\n", err)
		return err
	}

	if source != "" {
		status.Success("Configuration valid: %s", source)
	} else {
		status.Warning("No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	cfg, source, err := loadConfigFile(c)
	if err != nil {
		return err
	}

	if source != "" {
		fmt.Fprintf(c.App.Writer, "# Configuration from: %s\n\n", source)
	} else {
		fmt.Fprintln(c.App.Writer, "# Default configuration (no config file found)")
	}

	content, err := cfg.TOML()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(c.App.Writer, content)
	return nil
}
