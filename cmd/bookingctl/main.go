package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"bookings/auth"
	"bookings/client"
	"bookings/entity"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "bookingctl",
		Usage:  "Manage bookings from the command line",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", EnvVars: []string{"BOOKINGS_SERVER"}},
			&cli.StringFlag{Name: "token", EnvVars: []string{"BOOKINGS_TOKEN"}, Usage: "bearer token of the caller"},
			&cli.StringFlag{Name: "role", Value: string(entity.RoleCustomer), EnvVars: []string{"BOOKINGS_ROLE"}, Usage: "role the token was issued for"},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list your bookings with the actions available on them",
				Action: func(c *cli.Context) error {
					view, err := newView(c)
					if err != nil {
						return err
					}
					printRows(c.App.Writer, view.Rows())
					return nil
				},
			},
			{
				Name:      "show",
				ArgsUsage: "<booking_id>",
				Usage:     "print one booking as JSON",
				Action: func(c *cli.Context) error {
					id, err := bookingIDArg(c)
					if err != nil {
						return err
					}
					booking, err := newClient(c).Get(c.Context, id)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, booking)
				},
			},
			{
				Name:  "book",
				Usage: "request a booking from a provider",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Required: true},
					&cli.StringFlag{Name: "service", Required: true},
					&cli.StringFlag{Name: "date", Required: true, Usage: "requested date, e.g. 2026-11-02"},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "phone", Usage: "contact phone for this booking, defaults to the profile phone"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "visiting-price", Value: "0"},
					&cli.StringFlag{Name: "max-price", Value: "0"},
				},
				Action: func(c *cli.Context) error {
					visiting, err := decimal.NewFromString(c.String("visiting-price"))
					if err != nil {
						return fmt.Errorf("invalid visiting price: %w", err)
					}
					maxPrice, err := decimal.NewFromString(c.String("max-price"))
					if err != nil {
						return fmt.Errorf("invalid max price: %w", err)
					}

					booking, err := newClient(c).Book(c.Context, entity.BookingRequest{
						CustomerAddress: c.String("address"),
						CustomerPhone:   c.String("phone"),
						RequestedDate:   c.String("date"),
						Description:     c.String("description"),
						Provider:        entity.ProviderSnapshot{Username: c.String("provider")},
						Service: entity.ServiceDescriptor{
							Name:          c.String("service"),
							VisitingPrice: visiting,
							MaxPrice:      maxPrice,
						},
					})
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, booking.BookingID)
					return nil
				},
			},
			transitionCommand("accept", "accept a pending booking", (*client.View).Accept),
			transitionCommand("decline", "decline a pending booking", (*client.View).Decline),
			transitionCommand("cancel", "cancel a pending booking", (*client.View).Cancel),
			{
				Name:      "request-code",
				ArgsUsage: "<booking_id>",
				Usage:     "send a completion code to the customer",
				Action: func(c *cli.Context) error {
					id, err := bookingIDArg(c)
					if err != nil {
						return err
					}
					view, err := newView(c)
					if err != nil {
						return err
					}
					issued, err := view.RequestCompletionCode(c.Context, id)
					if err != nil {
						return err
					}
					if issued.ExpiresAt != nil {
						fmt.Fprintf(c.App.Writer, "code sent, valid until %s\n", issued.ExpiresAt.Local().Format(time.Kitchen))
					} else {
						fmt.Fprintln(c.App.Writer, "code sent")
					}
					return nil
				},
			},
			{
				Name:      "verify",
				ArgsUsage: "<booking_id> <code>",
				Usage:     "complete a booking with the code the customer received",
				Action: func(c *cli.Context) error {
					id, err := bookingIDArg(c)
					if err != nil {
						return err
					}
					code := c.Args().Get(1)
					if code == "" {
						return cli.Exit("missing code", 2)
					}
					view, err := newView(c)
					if err != nil {
						return err
					}
					booking, err := view.VerifyCompletionCode(c.Context, id, code)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, booking.Status)
					return nil
				},
			},
			{
				Name:      "feedback",
				ArgsUsage: "<booking_id> <text>",
				Usage:     "leave feedback on a completed booking",
				Action: func(c *cli.Context) error {
					id, err := bookingIDArg(c)
					if err != nil {
						return err
					}
					text := strings.Join(c.Args().Tail(), " ")
					view, err := newView(c)
					if err != nil {
						return err
					}
					if _, err := view.SubmitFeedback(c.Context, id, text); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "feedback saved")
					return nil
				},
			},
			{
				Name:  "ops",
				Usage: "list the operations view of all bookings (admin only)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status"},
				},
				Action: func(c *cli.Context) error {
					bookings, err := newClient(c).OpsBookings(c.Context, c.String("status"))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, bookings)
				},
			},
			{
				Name:  "token",
				Usage: "mint a development token signed with the server secret",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "secret", Required: true, EnvVars: []string{"JWT_SECRET"}},
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "name"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					token, err := auth.NewAuthenticator(c.String("secret")).IssueToken(entity.Actor{
						Username:    c.String("username"),
						DisplayName: c.String("name"),
						Email:       c.String("email"),
						Role:        entity.Role(c.String("role")),
					}, c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					return nil
				},
			},
		},
	}
}

func transitionCommand(
	name, usage string,
	apply func(v *client.View, ctx context.Context, bookingID string) (entity.Booking, error),
) *cli.Command {
	return &cli.Command{
		Name:      name,
		ArgsUsage: "<booking_id>",
		Usage:     usage,
		Action: func(c *cli.Context) error {
			id, err := bookingIDArg(c)
			if err != nil {
				return err
			}
			view, err := newView(c)
			if err != nil {
				return err
			}
			booking, err := apply(view, c.Context, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, booking.Status)
			return nil
		},
	}
}

func newClient(c *cli.Context) *client.Client {
	return client.New(c.String("server"), c.String("token"))
}

func newView(c *cli.Context) (*client.View, error) {
	role := entity.Role(c.String("role"))
	if !role.Valid() {
		return nil, cli.Exit(fmt.Sprintf("unknown role %q", role), 2)
	}

	view := client.NewView(newClient(c), role)
	if err := view.Refresh(c.Context); err != nil {
		return nil, err
	}
	return view, nil
}

func bookingIDArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", cli.Exit("missing booking id", 2)
	}
	return id, nil
}

func printRows(out io.Writer, rows []client.Row) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tSERVICE\tDATE\tSTATUS\tACTIONS")
	for _, r := range rows {
		actions := make([]string, 0, len(r.Actions))
		for _, a := range r.Actions {
			actions = append(actions, string(a))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Booking.BookingID,
			r.Booking.Service.Name,
			r.Booking.RequestedDate,
			r.Booking.Status,
			strings.Join(actions, ","),
		)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
