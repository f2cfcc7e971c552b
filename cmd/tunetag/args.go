package main

import (
	"fmt"
	"os"
	"strconv"

	"tunetag/internal/config"
)

// parseArgs parses command-line arguments and loads configuration.
// Priority: CLI flags > config file > defaults
func parseArgs() (config.Config, []string, string, error) {
	args := os.Args[1:]

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			printUsage()
			os.Exit(0)
		}
		if arg == "--init-config" {
			return config.Config{}, nil, "", initConfigFile()
		}
	}

	var configPath string
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" || args[i] == "-c" {
			if i+1 >= len(args) {
				return config.Config{}, nil, "", fmt.Errorf("--config requires a path argument")
			}
			configPath = args[i+1]
			break
		}
	}

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return config.Config{}, nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	var paths []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--verbose", "-v":
			cfg.Verbose = true

		case "--dry-run", "-n":
			cfg.DryRun = true

		case "--parallel", "-p":
			if i+1 >= len(args) {
				return config.Config{}, nil, "", fmt.Errorf("--parallel requires a number argument")
			}
			i++
			jobs, err := strconv.Atoi(args[i])
			if err != nil {
				return config.Config{}, nil, "", fmt.Errorf("invalid parallel jobs value: %s", args[i])
			}
			cfg.ParallelJobs = jobs

		case "--min-confidence", "-m":
			if i+1 >= len(args) {
				return config.Config{}, nil, "", fmt.Errorf("--min-confidence requires a number argument")
			}
			i++
			threshold, err := strconv.ParseFloat(args[i], 64)
			if err != nil {
				return config.Config{}, nil, "", fmt.Errorf("invalid min confidence value: %s", args[i])
			}
			cfg.MinConfidence = threshold

		case "--no-art":
			cfg.FetchCoverArt = false

		case "--keep-tags":
			cfg.PreferExistingTags = true

		case "--replace-tags":
			cfg.PreferExistingTags = false

		case "--config", "-c":
			i++

		default:
			if len(arg) > 0 && arg[0] == '-' {
				return config.Config{}, nil, "", fmt.Errorf("unknown flag: %s", arg)
			}
			paths = append(paths, arg)
		}
	}

	if len(paths) == 0 {
		return config.Config{}, nil, "", fmt.Errorf("no files or directories given")
	}

	return cfg, paths, configPath, nil
}

// initConfigFile creates a new config file with default values
func initConfigFile() error {
	path := config.GetDefaultConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file already exists at: %s\n", path)
		fmt.Println("Delete it first if you want to recreate it.")
		os.Exit(0)
	}

	cfg := config.DefaultConfig()

	if err := config.SaveConfigFile(cfg, path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Created default config file at: %s\n", path)
	fmt.Println("\nYou can now edit this file to customize your settings.")
	fmt.Println("Available options:")
	fmt.Println("  providers: priority-ordered list (musicbrainz, lastfm, discogs, spotify)")
	fmt.Println("  min_confidence: 0.0-1.0 (default: 0.5)")
	fmt.Println("  prefer_existing_tags: true/false (protect user-curated tags)")
	fmt.Println("  fetch_cover_art: true/false")
	fmt.Println("  acoustid_api_key: enables acoustic fingerprint lookup")
	fmt.Println("  cache_path: optional fingerprint result cache (SQLite)")

	os.Exit(0)
	return nil
}

// printUsage displays the help message
func printUsage() {
	fmt.Println("tunetag - Resolve and embed music metadata from multiple catalogs")
	fmt.Println()
	fmt.Println("Usage: tunetag [options] <file-or-directory>...")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v, --verbose              Show detailed output")
	fmt.Println("  -n, --dry-run              Resolve and report, but do not write tags")
	fmt.Println("  -p, --parallel <n>         Number of concurrent resolutions (1-10, default: 4)")
	fmt.Println("  -m, --min-confidence <f>   Minimum match confidence 0.0-1.0 (default: 0.5)")
	fmt.Println("      --no-art               Skip cover art fetching")
	fmt.Println("      --keep-tags            Keep existing tags unless a match is near-certain")
	fmt.Println("      --replace-tags         Let confident matches overwrite existing tags")
	fmt.Println("  -c, --config <path>        Path to config file")
	fmt.Println("  -h, --help                 Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  --init-config              Create a default config file")
	fmt.Println()
	fmt.Println("Config file locations (checked in order):")
	fmt.Println("  ./tunetag.yaml")
	fmt.Println("  ~/.config/tunetag/config.yaml")
	fmt.Println("  ~/.tunetag.yaml")
	fmt.Println()
	fmt.Println("Credentials can also be supplied via environment (or a .env file):")
	fmt.Println("  TUNETAG_ACOUSTID_API_KEY, TUNETAG_LASTFM_API_KEY, TUNETAG_DISCOGS_TOKEN,")
	fmt.Println("  TUNETAG_SPOTIFY_CLIENT_ID, TUNETAG_SPOTIFY_CLIENT_SECRET")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Preview what would change")
	fmt.Println("  tunetag --dry-run ~/Music/incoming")
	fmt.Println()
	fmt.Println("  # Tag a directory with 8 concurrent resolutions")
	fmt.Println("  tunetag -p 8 ~/Music/incoming")
	fmt.Println()
	fmt.Println("  # Tag a single file, overwriting its existing tags when confident")
	fmt.Println("  tunetag --replace-tags \"Artist - Song.mp3\"")
}
