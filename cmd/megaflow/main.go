// megaflow — инструмент командной строки для megaflow-server.
//
// Использование:
//
//	megaflow [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	chat        Отправить запрос через граф сервисов
//	graph       Показать граф сервисов
//	executions  История выполнений (list, get, watch)
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/megaflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "megaflow",
		Short:         "megaflow CLI — talk to a megaflow-server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8888", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewChatCmd(clientFn, outputFn),
		cli.NewGraphCmd(clientFn, outputFn),
		cli.NewExecutionsCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		outputFn().Error(err.Error())
		os.Exit(1)
	}
}
