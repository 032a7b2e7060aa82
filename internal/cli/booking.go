package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ErrPassengerRequired — команде booking не передан --passenger.
var ErrPassengerRequired = errors.New("--passenger is required for booking commands")

// NewBookingCmd создаёт группу команд для бронирований.
// requirePassenger проверяет, что глобальный флаг --passenger задан.
func NewBookingCmd(clientFn func() *Client, outputFn func() *Output, requirePassenger func() error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booking",
		Short: "Manage bookings of the current passenger",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return requirePassenger()
		},
	}

	cmd.AddCommand(
		newBookingCreateCmd(clientFn, outputFn),
		newBookingListCmd(clientFn, outputFn),
		newBookingCancelCmd(clientFn, outputFn),
	)

	return cmd
}

func newBookingCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "create RIDE_ID",
		Short: "Book a seat in a ride",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			b, err := client.CreateBooking(args[0])
			if err != nil {
				return err
			}

			out.Fields([][2]string{
				{"Booking", b.BookingID},
				{"Ride", b.RideID},
				{"Status", b.Status},
				{"Created", b.CreatedAt},
			}, b)
			out.Success("Ride booked successfully")
			return nil
		},
	}
}

func newBookingListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var page int
	var pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List my bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.ListMyBookings(page, pageSize)
			if err != nil {
				return err
			}

			headers := []string{"ID", "RIDE_ID", "STATUS", "CREATED"}
			rows := make([][]string, len(result.Items))
			for i, b := range result.Items {
				rows[i] = []string{b.BookingID, b.RideID, b.Status, b.CreatedAt}
			}

			out.Print(headers, rows, result)
			if !out.jsonMode {
				out.Success(fmt.Sprintf("Page %d, %d of %d bookings", result.Page, len(result.Items), result.TotalCount))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "Bookings per page (max 100)")

	return cmd
}

func newBookingCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel BOOKING_ID",
		Short: "Cancel a booking and release the seat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelBooking(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Booking %s cancelled", args[0]))
			return nil
		},
	}
}
