// Package main - консольный клиент магазина поверх клиентской сессии.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "shopctl",
		Usage: "shop client: login, cart and orders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "shop API base URL",
				Value:   "http://localhost:8080",
				EnvVars: []string{"SHOPCTL_SERVER"},
			},
			&cli.StringFlag{
				Name:    "state",
				Usage:   "session state file",
				EnvVars: []string{"SHOPCTL_STATE"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log diagnostics to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "create an account and log in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"SHOPCTL_PASSWORD"}},
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: withSession(func(c *cli.Context, s *session.Session) error {
					if err := s.Register(c.Context, c.String("email"), c.String("password"), c.String("name")); err != nil {
						return err
					}
					return printJSON(s.User())
				}),
			},
			{
				Name:  "login",
				Usage: "log in and store the session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"SHOPCTL_PASSWORD"}},
				},
				Action: withSession(func(c *cli.Context, s *session.Session) error {
					if err := s.Login(c.Context, c.String("email"), c.String("password")); err != nil {
						return err
					}
					return printJSON(s.User())
				}),
			},
			{
				Name:  "logout",
				Usage: "revoke the session",
				Action: withSession(func(c *cli.Context, s *session.Session) error {
					return s.Logout(c.Context)
				}),
			},
			{
				Name:      "products",
				Usage:     "list products",
				ArgsUsage: "[query]",
				Action: withSession(func(c *cli.Context, s *session.Session) error {
					products, err := s.Products(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return printJSON(products)
				}),
			},
			{
				Name:  "cart",
				Usage: "show the cart, falling back to the local copy when the server is unreachable",
				Action: withSession(func(c *cli.Context, s *session.Session) error {
					cart, source, err := s.ReconcileCart(c.Context)
					if err != nil {
						return err
					}
					if source == session.SourceLocal {
						fmt.Fprintln(os.Stderr, "server unreachable: showing local cart")
					}
					return printJSON(cart)
				}),
			},
			{
				Name:  "add",
				Usage: "add a product to the cart",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "product", Required: true},
					&cli.Int64Flag{Name: "qty", Value: 1},
				},
				Action: withSession(func(c *cli.Context, s *session.Session) error {
					cart, err := s.AddToCart(c.Context, c.Int64("product"), c.Int64("qty"))
					if err != nil {
						return err
					}
					return printJSON(cart)
				}),
			},
			{
				Name:  "order",
				Usage: "place an order from the cart",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "recipient", Required: true},
					&cli.StringFlag{Name: "phone", Required: true},
					&cli.StringFlag{Name: "postal-code", Required: true},
					&cli.StringFlag{Name: "address1", Required: true},
					&cli.StringFlag{Name: "address2"},
					&cli.StringFlag{Name: "memo"},
					&cli.Int64SliceFlag{Name: "product", Usage: "order only these products (repeatable)"},
					&cli.StringFlag{Name: "payment-id", Usage: "gateway payment id, if already paid"},
					&cli.StringFlag{Name: "idempotency-key"},
				},
				Action: withSession(func(c *cli.Context, s *session.Session) error {
					req := api.CreateOrderRequest{
						Shipping: model.ShippingAddress{
							RecipientName: c.String("recipient"),
							Phone:         c.String("phone"),
							PostalCode:    c.String("postal-code"),
							Address1:      c.String("address1"),
							Address2:      c.String("address2"),
							Memo:          c.String("memo"),
						},
						ProductIDs: c.Int64Slice("product"),
						PaymentID:  c.String("payment-id"),
					}
					order, err := s.PlaceOrder(c.Context, req, c.String("idempotency-key"))
					if err != nil {
						return err
					}
					return printJSON(order)
				}),
			},
			{
				Name:  "orders",
				Usage: "list your orders",
				Action: withSession(func(c *cli.Context, s *session.Session) error {
					orders, err := s.Orders(c.Context)
					if err != nil {
						return err
					}
					return printJSON(orders)
				}),
			},
		},
	}
}

// withSession открывает сессию из файла состояния перед выполнением команды.
func withSession(action func(*cli.Context, *session.Session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		path := c.String("state")
		if path == "" {
			var err error
			if path, err = session.DefaultPath(); err != nil {
				return err
			}
		}

		logger := zap.NewNop()
		if c.Bool("verbose") {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer l.Sync()
			logger = l
		}

		s, err := session.New(c.String("server"), session.NewFileStore(path), session.WithLogger(logger))
		if err != nil {
			return err
		}
		return action(c, s)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
