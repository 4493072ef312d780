package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/titans-ml/titans"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the reasoning knowledge graph as graphviz dot",
	Long: `Print the seeded knowledge graph M4 reasons over in graphviz dot
form, for rendering with dot(1):

  titans graph | dot -Tsvg -o kg.svg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r := titans.NewReasoning(cfg.Classes)
		fmt.Println(r.ToDot())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
