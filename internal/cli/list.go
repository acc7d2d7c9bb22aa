package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lumenviz/chronicle/internal/config"
	"github.com/lumenviz/chronicle/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved records from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.CatalogPath == "" {
			return fmt.Errorf("catalog is disabled; set CHRONICLE_CATALOG_PATH")
		}

		catalog, err := store.OpenCatalog(cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer catalog.Close()

		entries, err := catalog.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		if len(entries) == 0 {
			color.Yellow("no records yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTEPS\tCREATED\tPATH")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.ID, e.Steps, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Path)
		}
		return w.Flush()
	},
}

// ListCmd returns the list command.
func ListCmd() *cobra.Command {
	return listCmd
}
