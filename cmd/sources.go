package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"Folium/adapters"
	"Folium/engine"
	"Folium/utils"
)

// SourceListItem represents a source for API list responses
type SourceListItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Site        string `json:"site"`
	Description string `json:"description"`
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List all available content sources",
	Long:  `Display the sources Folium can scrape: the built-in adapters plus every configured site definition.`,
	Run: func(cmd *cobra.Command, args []string) {
		all := appEngine.AllAdapters()
		sort.Slice(all, func(i, j int) bool { return all[i].ID() < all[j].ID() })

		if jsonOutput {
			items := make([]SourceListItem, 0, len(all))
			for _, a := range all {
				items = append(items, SourceListItem{
					ID:          a.ID(),
					Name:        a.Name(),
					Kind:        string(a.Kind()),
					Site:        a.SiteURL(),
					Description: a.Description(),
				})
			}
			utils.OutputJSON("success", map[string]interface{}{
				"sources": items,
				"count":   len(items),
			}, nil)
			return
		}

		fmt.Println("Available content sources:")
		fmt.Println("")

		rows := make([][]string, 0, len(all))
		for _, a := range all {
			rows = append(rows, []string{a.ID(), string(a.Kind()), a.SiteURL(), a.Description()})
		}
		printTable([]string{"ID", "KIND", "SITE", "DESCRIPTION"}, rows)

		fmt.Println("")
		fmt.Println("Use the source ID with 'folium add' to start tracking a work")
	},
}

var sourcesShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a configured source definition",
	Long:  `Print the YAML definition of a file-configured source.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := sourceStore.GetSource(args[0])
		if err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}

		if jsonOutput {
			utils.OutputJSON("success", cfg, nil)
			return
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Print(string(data))
	},
}

var sourcesImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Install a source definition from a YAML file",
	Long:  `Validate a YAML site definition and install it into the source directory. The new source is available immediately.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: Cannot read %s: %v\n", args[0], err)
			return
		}

		cfg := &engine.SourceConfig{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %s is not a valid source definition: %v\n", args[0], err)
			return
		}

		if err := sourceStore.PersistSource(cfg); err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}
		if !appEngine.AdapterExists(cfg.Name) {
			if err := appEngine.RegisterAdapter(adapters.NewGeneric(appEngine, cfg)); err != nil {
				appEngine.Logger.Warn("Source '%s' installed but not registered: %v", cfg.Name, err)
			}
		}

		if jsonOutput {
			utils.OutputJSON("success", map[string]string{
				"message": fmt.Sprintf("Installed source '%s'", cfg.Name),
				"source":  cfg.Name,
			}, nil)
			return
		}
		fmt.Printf("Installed source '%s' (%s)\n", cfg.Name, cfg.BaseURL)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesShowCmd)
	sourcesCmd.AddCommand(sourcesImportCmd)
}
