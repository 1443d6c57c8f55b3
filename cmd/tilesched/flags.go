package main

import "github.com/urfave/cli/v3"

var (
	configFile   string
	profileName  string
	profilesFile string
	logLevel     string
	logFormat    string
	debug        bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func profileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "profile",
			Aliases:     []string{"p"},
			Usage:       "hardware profile to plan for",
			Value:       "cloud",
			Destination: &profileName,
		},
		&cli.StringFlag{
			Name:        "profiles-file",
			Usage:       "YAML file with additional hardware profiles",
			Destination: &profilesFile,
		},
	}
}

func outputFlag(dest *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "output",
		Aliases:     []string{"o"},
		Usage:       "output format (text, json)",
		Value:       "text",
		Destination: dest,
	}
}
