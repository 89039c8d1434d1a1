package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/pipeline"
)

type stageInfo struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies,omitempty"`
	Description  string   `json:"description"`
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the processing stages in execution order",
	RunE: func(cmd *cobra.Command, args []string) error {
		stages, err := pipeline.New(pipeline.Options{}).Registry().GetOrdered()
		if err != nil {
			return err
		}
		out := make([]stageInfo, len(stages))
		for i, s := range stages {
			out[i] = stageInfo{Name: s.Name(), Dependencies: s.Dependencies(), Description: s.Description()}
		}
		return output.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}
