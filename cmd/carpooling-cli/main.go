// Carpooling CLI — инструмент командной строки для бронирований
// и разбора booking_dlq через HTTP API.
//
// Использование:
//
//	carpooling [--api-url URL] [--passenger ID] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	booking  Бронирования текущего пассажира
//	dlq      Разбор недоставленных уведомлений
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Carpooling/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var passenger string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "carpooling",
		Short:         "Carpooling CLI — bookings and notification dead letters",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("CARPOOLING_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&passenger, "passenger", os.Getenv("CARPOOLING_PASSENGER_ID"), "Passenger ID sent as X-Passenger-ID")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, passenger) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	requirePassenger := func() error {
		if passenger == "" {
			return cli.ErrPassengerRequired
		}
		return nil
	}

	rootCmd.AddCommand(
		cli.NewBookingCmd(clientFn, outputFn, requirePassenger),
		cli.NewDLQCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
