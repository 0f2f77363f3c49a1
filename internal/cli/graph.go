package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewGraphCmd создаёт команду просмотра топологии графа.
func NewGraphCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Show the service graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			graph, err := client.Graph()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "ROLE", "URL", "STREAMING", "DEPENDS_ON", "PRIMARY"}
			rows := make([][]string, len(graph.Nodes))
			for i, n := range graph.Nodes {
				primary := ""
				if n.Name == graph.Primary {
					primary = "*"
				}
				rows[i] = []string{
					n.Name,
					n.Role,
					n.URL,
					strconv.FormatBool(n.Streaming),
					dashIfEmpty(strings.Join(n.DependsOn, ",")),
					primary,
				}
			}

			out.Print(headers, rows, graph)
			return nil
		},
	}
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
