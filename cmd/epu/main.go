package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"epu-go/internal/app"
	"epu-go/internal/config"
	"epu-go/internal/epu"
	"epu-go/internal/merge"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an EPUApp. The caller must defer a.Close().
func newApp() (*app.EPUApp, error) {
	defaults, err := app.ResolveDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no config at %s, run 'epu config init' first", defaults.ConfigPath)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewEPUApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// resolveEpisodesDir makes the path absolute and verifies it is an
// existing directory.
func resolveEpisodesDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("episodes directory not found at %s", path)
	}
	return abs, nil
}

var rootCmd = &cobra.Command{
	Use:   "epu",
	Short: "SMBX2 episode updater",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		episodesDir, _ := cmd.Flags().GetString("episodes-dir")
		episodeURL, _ := cmd.Flags().GetString("episode-url")
		if episodesDir == "" || episodeURL == "" {
			return fmt.Errorf("both --episodes-dir and --episode-url are required")
		}

		absDir, err := resolveEpisodesDir(episodesDir)
		if err != nil {
			fmt.Println("If you do not have SMBX2, install it here: https://codehaus.moe/smbx2")
			return err
		}

		defaults, err := app.ResolveDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(absDir, episodeURL, defaults.BaseDir)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Episodes Dir: %s\n", cfg.EpisodesDir)
		fmt.Printf("Episode URL:  %s\n", cfg.EpisodeURL)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.ResolveDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		vault := cfg.Vault.Type
		switch cfg.Vault.Type {
		case "filesystem":
			vault = fmt.Sprintf("filesystem (%s)", cfg.Vault.Root)
		case "s3":
			vault = fmt.Sprintf("s3 (%s)", cfg.Vault.S3.Bucket)
		}
		encryption := "off"
		if cfg.Backup.EncryptRecipient != "" {
			encryption = "age"
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Episodes Dir: %s\n", cfg.EpisodesDir)
		fmt.Printf("Episode URL:  %s\n", cfg.EpisodeURL)
		fmt.Printf("Marker Ext:   %s\n", cfg.MarkerExtension())
		fmt.Printf("Preserve:     %s\n", strings.Join(cfg.PreservePatterns(), ", "))
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Cache Dir:    %s\n", cfg.CacheDir)
		fmt.Printf("Vault:        %s\n", vault)
		fmt.Printf("Encryption:   %s\n", encryption)
		return nil
	},
}

var configSetURLCmd = &cobra.Command{
	Use:   "set-url URL",
	Short: "Update the distributor URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.ResolveDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		cfg.EpisodeURL = args[0]
		if err := config.Save(defaults.ConfigPath, cfg); err != nil {
			return err
		}

		fmt.Printf("Episode URL updated in %s\n", defaults.ConfigPath)
		return nil
	},
}

var configSetDirCmd = &cobra.Command{
	Use:   "set-dir DIR",
	Short: "Update the episodes directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		absDir, err := resolveEpisodesDir(args[0])
		if err != nil {
			return err
		}

		defaults, err := app.ResolveDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		cfg.EpisodesDir = absDir
		if err := config.Save(defaults.ConfigPath, cfg); err != nil {
			return err
		}

		fmt.Printf("Episodes directory updated in %s\n", defaults.ConfigPath)
		return nil
	},
}

// check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the distributor for the episode archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.Check(context.Background())
		if err != nil {
			return err
		}

		if info.Size < 0 {
			fmt.Printf("Remote file: %s (size unknown)\n", info.Filename)
		} else {
			fmt.Printf("Remote file: %s (%d bytes)\n", info.Filename, info.Size)
		}
		return nil
	},
}

// update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download the episode and install or merge it",
	RunE: func(cmd *cobra.Command, args []string) error {
		installName, _ := cmd.Flags().GetString("install-name")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		download := app.NewProgressPrinter(os.Stdout, "downloading")
		merging := app.NewProgressPrinter(os.Stdout, "merging")
		opts := epu.UpdateOptions{
			InstallName: installName,
			OnDownload:  download.Download,
			OnMerge: func(ev merge.Progress) {
				download.Done()
				merging.Merge(ev)
			},
		}

		res, err := a.Update(context.Background(), opts)
		download.Done()
		merging.Done()
		if err != nil {
			var nfe *epu.NotFoundError
			if errors.As(err, &nfe) {
				return fmt.Errorf("episodes directory %s does not exist, fix with 'epu config set-dir'", nfe.Path)
			}
			return fmt.Errorf("update failed: %w", err)
		}

		if res.Fresh {
			fmt.Printf("Fresh install to %s\n", res.InstallDir)
		} else {
			fmt.Printf("Merged into %s\n", res.InstallDir)
			fmt.Printf("Backup stored as %s\n", res.BackupName)
		}
		fmt.Printf("Done. %d files changed.\n", len(res.Written)+len(res.Deleted))

		if len(res.Failed) > 0 {
			fmt.Printf("%d operations failed:\n", len(res.Failed))
			for _, f := range res.Failed {
				fmt.Printf("  %s %s: %v\n", f.Phase, f.Path, f.Err)
			}
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View update history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		showPaths, _ := cmd.Flags().GetBool("paths")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No updates recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			name := op.InstallName
			if name == "" {
				name = "-"
			}
			fmt.Printf("#%d  %s  %-7s  %-24s  %d changed  %s\n",
				op.ID,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				name,
				op.FilesChanged,
				duration,
			)

			if showPaths {
				paths, err := a.ChangedPaths(op.ID)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Printf("    %-6s  %s\n", p.Phase, p.Path)
				}
			}
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("episodes-dir", "", "Path to the SMBX2 episodes directory")
	configInitCmd.Flags().String("episode-url", "", "Direct download URL of the episode zip")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetURLCmd)
	configCmd.AddCommand(configSetDirCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().String("install-name", "", "Override the install directory name under the episodes directory")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of operations to show")
	historyCmd.Flags().Bool("paths", false, "List the files each operation changed")
}
