package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pir/internal/api"
	"github.com/joescharf/pir/internal/store"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the issue REST backend",
	Long: `Start the issue REST API backed by SQLite.

Routes:
  GET    /                 health
  GET    /health           health
  GET    /api/issues       list issues
  POST   /api/issues       create issue
  GET    /api/issues/{id}  get issue
  PUT    /api/issues/{id}  replace issue
  DELETE /api/issues/{id}  delete issue

Use --db :memory: for a throwaway database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		defer s.Close()

		srv := api.NewServer(s, viper.GetString("api.allowed_origin"))

		addr := fmt.Sprintf(":%d", viper.GetInt("api.port"))
		ui.Info("Serving API at http://localhost%s (db: %s)", addr, dbLabel(viper.GetString("db_path")))
		return listenAndServe(cmd.Context(), addr, srv.Router())
	},
}

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().IntP("port", "p", 8000, "port to listen on")
	apiCmd.Flags().String("db", "", "SQLite database path (default ~/.config/pir/pir.db)")
	apiCmd.Flags().String("allowed-origin", "", "CORS allowed origin (default http://localhost:5173)")
	_ = viper.BindPFlag("api.port", apiCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("db_path", apiCmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("api.allowed_origin", apiCmd.Flags().Lookup("allowed-origin"))
}

func dbLabel(path string) string {
	if path == store.MemoryPath {
		return "in-memory"
	}
	return path
}
