package main

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/varoOP/animequotes/internal/config"
	"github.com/varoOP/animequotes/internal/database"
	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/logger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored progress of every anime",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log := logger.NewLogger(cfg.LogLevel, cfg.LogFile)
		defer log.Close()

		db, err := database.NewDB(cfg.DatabasePath, log.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		snapshot, err := database.NewStatusRepo(log.Logger, db).GetAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read status: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderStatus(snapshot))
		return nil
	},
}

func renderStatus(snapshot domain.StatusSnapshot) string {
	statuses := make([]domain.AnimeStatus, 0, len(snapshot))
	for _, s := range snapshot {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Key < statuses[j].Key })

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Anime", "MAL ID", "Episodes", "Completed", "Updated"})

	completed := 0
	for _, s := range statuses {
		mark := "no"
		if s.Completed {
			mark = "yes"
			completed++
		}

		updated := ""
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Local().Format("2006-01-02 15:04")
		}

		tw.AppendRow(table.Row{s.Key, s.MalID, s.EpisodeAmount, mark, updated})
	}

	tw.AppendFooter(table.Row{fmt.Sprintf("%d anime", len(statuses)), "", "", fmt.Sprintf("%d", completed), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})

	return tw.Render()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
