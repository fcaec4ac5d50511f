package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/thunder-muscle/internal/config"
	"github.com/kingrea/thunder-muscle/internal/tool"
)

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a default config.yaml and create the project directories",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, err := projectDir()
		if err != nil {
			return err
		}
		cfg, err := config.Init(dir)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Initialized project in %s\n", cfg.ProjectDir)
		fmt.Fprintf(w, "  config:    %s\n", cfg.Path)
		fmt.Fprintf(w, "  workflows: %s\n", cfg.Workflows.Dir)
		dirs := cfg.ToolDirs()
		for _, category := range tool.Categories {
			fmt.Fprintf(w, "  %-10s %s\n", string(category)+"s:", dirs[string(category)])
		}
		return nil
	},
}
