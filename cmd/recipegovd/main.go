// recipegovd is the recipe-generation governor service: an HTTP front for
// governed recipe suggestion, photo generation, and ingredient
// identification calls to OpenAI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/platewise-ai/governor/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:     "recipegovd",
		Short:   "Governed AI recipe generation service",
		Version: version.Short(),
	}

	root.AddCommand(
		newServeCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print full version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}
}
