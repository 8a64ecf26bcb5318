package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"Folium/adapters"
	"Folium/engine"
	"Folium/library"
)

var (
	jsonOutput  bool
	verboseMode bool
	debugMode   bool

	flagTranslatorBackend string
	flagTranslatorAPIKey  string
	flagTargetLanguage    string
	flagStoreRoot         string
	flagFetchTimeout      int
	flagFetchRetries      int

	appEngine   *engine.Engine
	catalog     *library.Catalog
	sourceStore *library.SourceStore
	version     string
)

var rootCmd = &cobra.Command{
	Use:   "folium",
	Short: "Folium tracks serialized web fiction and turns it into e-books.",
	Long: "Folium is a CLI tool for tracking serialized web fiction. It scrapes novels and comics " +
		"from their source websites, keeps a local library of chapters, translates them on demand, " +
		"and bundles them into EPUB files.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appEngine != nil {
			return nil
		}

		cfg, err := engine.LoadConfig()
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, cfg)

		appEngine, err = engine.New(cfg)
		if err != nil {
			return err
		}
		appEngine.Logger.Verbose = verboseMode || debugMode
		appEngine.Logger.DebugMode = debugMode

		catalog = library.NewCatalog(cfg.StoreRoot, appEngine.Logger)

		sourceStore, err = library.NewSourceStore(sourcesDir(), appEngine.Logger)
		if err != nil {
			return err
		}
		configs, err := sourceStore.ListSources()
		if err != nil {
			return err
		}
		return adapters.Install(appEngine, configs)
	},
	Run: func(cmd *cobra.Command, args []string) {
		// When no command is specified, display help
		if err := cmd.Help(); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if appEngine != nil {
		appEngine.Close()
	}
	if err != nil {
		_, ferr := fmt.Fprintf(os.Stderr, "Oops. An error while executing Folium '%s'\n", err)
		if ferr != nil {
			return
		}
		os.Exit(1)
	}
}

// applyFlagOverrides lets explicitly set global flags win over the
// environment configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *engine.Config) {
	flags := cmd.Flags()
	if flags.Changed("translator-backend") {
		cfg.TranslatorBackend = flagTranslatorBackend
	}
	if flags.Changed("translator-api-key") {
		cfg.TranslatorAPIKey = flagTranslatorAPIKey
	}
	if flags.Changed("target-language") {
		cfg.TargetLanguage = flagTargetLanguage
	}
	if flags.Changed("store-root") {
		cfg.StoreRoot = flagStoreRoot
	}
	if flags.Changed("fetch-timeout") {
		cfg.FetchTimeoutSeconds = flagFetchTimeout
	}
	if flags.Changed("fetch-retries") {
		cfg.FetchRetries = flagFetchRetries
	}
}

// sourcesDir is where the per-site YAML definitions live.
func sourcesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".folium", "sources")
	}
	return filepath.Join(home, ".folium", "sources")
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON only")
	rootCmd.PersistentFlags().BoolVar(&verboseMode, "verbose", false, "Print informational log messages")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Print debug log messages")

	// Configuration overrides
	rootCmd.PersistentFlags().StringVar(&flagTranslatorBackend, "translator-backend", "free", "Translation backend: paid or free")
	rootCmd.PersistentFlags().StringVar(&flagTranslatorAPIKey, "translator-api-key", "", "API key for the paid translation backend")
	rootCmd.PersistentFlags().StringVar(&flagTargetLanguage, "target-language", "ES", "Default translation target language")
	rootCmd.PersistentFlags().StringVar(&flagStoreRoot, "store-root", "./storage", "Root directory of the content store")
	rootCmd.PersistentFlags().IntVar(&flagFetchTimeout, "fetch-timeout", 10, "Default fetch timeout in seconds")
	rootCmd.PersistentFlags().IntVar(&flagFetchRetries, "fetch-retries", 3, "Default fetch retry count")
}
