package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewChatCmd создаёт команду отправки chat-запроса.
func NewChatCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var stream bool
	var maxTokens int
	var temperature float64
	var model string

	cmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Send a chat request through the service graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := ChatRequest{
				Model:    model,
				Messages: []ChatMessage{{Role: "user", Content: strings.Join(args, " ")}},
			}
			if cmd.Flags().Changed("max-tokens") {
				req.MaxTokens = &maxTokens
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}

			if stream {
				return client.ChatStream(req, out.Writer())
			}

			resp, err := client.Chat(req)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(resp)
				return nil
			}
			out.Line(resp.Content())
			return nil
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the answer as it is generated")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum tokens to generate (server default if not specified)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature (server default if not specified)")
	cmd.Flags().StringVar(&model, "model", "", "Model name to report in the response")

	return cmd
}
