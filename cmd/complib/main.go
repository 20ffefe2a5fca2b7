package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"complib/internal/app"
	"complib/internal/complib"
	"complib/internal/config"
	"complib/internal/data"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a ComplibApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "browse", "download").
func newApp(cmd *cobra.Command, command string) (*app.ComplibApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewComplibApp(cmd.Context(), cfg, command, verbose)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "complib",
	Short:        "Browse and download components from a component repository",
	SilenceUsage: true,
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		apiURL, _ := cmd.Flags().GetString("api-url")
		if apiURL == "" {
			apiURL = defaults["api_url"]
		}

		cfg := config.NewConfig(apiURL, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("API URL:  %s\n", cfg.APIURL)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("API URL:      %s\n", cfg.APIURL)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Download Dir: %s\n", cfg.DownloadDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Manager:      %s (page size %d)\n", cfg.Manager.Type, cfg.Manager.PageSize)
		fmt.Printf("Transport:    %s\n", cfg.Transport.Type)
		fmt.Printf("Library:      %s\n", cfg.Library.Type)
		fmt.Printf("On Conflict:  %s\n", cfg.Download.OnConflict)
		return nil
	},
}

// browse command
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "List components from the configured repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBrowse(cmd, "browse", func(a *app.ComplibApp) complib.Manager { return a.Manager() })
	},
}

// local command
var localCmd = &cobra.Command{
	Use:   "local",
	Short: "List components already downloaded into the local library",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBrowse(cmd, "local", func(a *app.ComplibApp) complib.Manager { return a.LocalManager() })
	},
}

func runBrowse(cmd *cobra.Command, command string, pick func(*app.ComplibApp) complib.Manager) (err error) {
	opts, err := browseOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, command)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			a.Fail()
		}
		a.Close()
	}()

	ctx := cmd.Context()
	m := pick(a)
	out := newPrinter(os.Stdout)

	if err := opts.apply(ctx, m); err != nil {
		return err
	}
	out.Page(m)

	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive {
		return nil
	}
	return interact(ctx, m, os.Stdin, out)
}

// tags command
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List repository tags",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "tags")
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				a.Fail()
			}
			a.Close()
		}()

		tags, err := a.Manager().Tags(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching tags: %w", err)
		}
		if len(tags) == 0 {
			fmt.Println("No tags.")
			return nil
		}
		newPrinter(os.Stdout).Tags(tags)
		return nil
	},
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download NAME",
	Short: "Download a component file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		all, _ := cmd.Flags().GetBool("all")
		typeFlag, _ := cmd.Flags().GetString("type")
		if !all && typeFlag == "" {
			return fmt.Errorf("either --type or --all is required")
		}
		var ft data.FileType
		if !all {
			if ft, err = data.ParseFileType(typeFlag); err != nil {
				return err
			}
		}

		a, err := newApp(cmd, "download")
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				a.Fail()
			}
			a.Close()
		}()

		ctx := cmd.Context()
		c, err := a.FindComponent(ctx, a.Manager(), args[0])
		if err != nil {
			return err
		}

		var results []complib.DownloadResult
		if all {
			results, err = a.DownloadAll(ctx, c)
		} else {
			var res complib.DownloadResult
			res, err = a.Download(ctx, c, ft)
			results = []complib.DownloadResult{res}
		}
		for _, res := range results {
			printResult(res)
		}
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		return nil
	},
}

func printResult(res complib.DownloadResult) {
	switch {
	case res.Err != nil:
		fmt.Printf("FAILED  %s: %v\n", res.URL, res.Err)
	case res.Existed && res.Path != res.Target:
		fmt.Printf("Saved %s (%d bytes, %s already existed)\n", res.Path, res.Bytes, res.Target)
	case res.Existed:
		fmt.Printf("Replaced %s (%d bytes)\n", res.Path, res.Bytes)
	default:
		fmt.Printf("Saved %s (%d bytes)\n", res.Path, res.Bytes)
	}
}

func addBrowseFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("search", "s", "", "Search key")
	cmd.Flags().String("sort", "", "Sort field: name, created_at or updated_at")
	cmd.Flags().String("order", "asc", "Sort order: asc or desc")
	cmd.Flags().StringSliceP("type", "t", nil, "Only components with one of these file types")
	cmd.Flags().StringSlice("tag", nil, "Only components with one of these tags")
	cmd.Flags().IntP("page", "p", 1, "Page to show")
	cmd.Flags().BoolP("interactive", "i", false, "Page through results interactively")
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("api-url", "", "Repository API URL (default $COMPLIB_API_URL)")
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(browseCmd)
	addBrowseFlags(browseCmd)
	rootCmd.AddCommand(localCmd)
	addBrowseFlags(localCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringP("type", "t", "", "File type to download (fcstd, step, stl, obj, gltf, zip)")
	downloadCmd.Flags().Bool("all", false, "Download every file type the component offers")
}
