package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDLQCmd создаёт группу команд для разбора booking_dlq.
func NewDLQCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered booking notifications",
	}

	cmd.AddCommand(
		newDLQStatsCmd(clientFn, outputFn),
		newDLQPeekCmd(clientFn, outputFn),
		newDLQReplayCmd(clientFn, outputFn),
	)

	return cmd
}

func newDLQStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show message counts of booking_queue and booking_dlq",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.DLQStats()
			if err != nil {
				return err
			}

			headers := []string{"QUEUE", "MESSAGES", "CONSUMERS"}
			rows := make([][]string, len(stats))
			for i, s := range stats {
				rows[i] = []string{s.Queue, strconv.Itoa(s.Messages), strconv.Itoa(s.Consumers)}
			}

			out.Print(headers, rows, stats)
			return nil
		},
	}
}

func newDLQPeekCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "peek",
		Short: "Show dead letters without removing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			letters, err := client.PeekDLQ(limit)
			if err != nil {
				return err
			}

			headers := []string{"MESSAGE_ID", "RETRIES", "REASON", "TIMESTAMP"}
			rows := make([][]string, len(letters))
			for i, l := range letters {
				rows[i] = []string{l.MessageID, strconv.Itoa(l.RetryCount), l.Reason, l.Timestamp}
			}

			out.Print(headers, rows, letters)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of messages to show")

	return cmd
}

func newDLQReplayCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Move dead letters back to booking_queue with a fresh retry budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			replayed, err := client.ReplayDLQ(limit)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(map[string]int{"replayed": replayed})
				return nil
			}
			out.Success(fmt.Sprintf("Replayed %d message(s)", replayed))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of messages to replay")

	return cmd
}
