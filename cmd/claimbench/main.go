// README: claimbench races concurrent claims for one order and reports how many operators
// won. Exactly one winner is the expected outcome.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "claimbench",
		Usage: "fire concurrent claims for one order and count winners",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Value: "http://localhost:8080", EnvVars: []string{"FLEETCLAIM_BENCH_BASE_URL"}, Usage: "operator API base URL"},
			&cli.StringFlag{Name: "order", Value: "1", Usage: "order id to claim"},
			&cli.StringSliceFlag{Name: "token", EnvVars: []string{"FLEETCLAIM_BENCH_TOKENS"}, Usage: "operator bearer token, one per racer"},
			&cli.BoolFlag{Name: "fake", Usage: "race against an in-process fake authority instead of a running API"},
			&cli.IntFlag{Name: "operators", Value: 20, Usage: "number of racing operators in --fake mode"},
			&cli.StringFlag{Name: "balance", Value: "1000", Usage: "wallet balance per operator in --fake mode"},
			&cli.StringFlag{Name: "price", Value: "500", Usage: "order estimated price in --fake mode"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "total timeout"},
			&cli.BoolFlag{Name: "verbose", Usage: "log every attempt"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	if c.Bool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	var (
		sum *Summary
		err error
	)
	if c.Bool("fake") {
		sum, err = runFake(ctx, FakeConfig{
			OrderID:   c.String("order"),
			Operators: c.Int("operators"),
			Balance:   c.String("balance"),
			Price:     c.String("price"),
		}, log)
	} else {
		tokens := c.StringSlice("token")
		if len(tokens) == 0 {
			return cli.Exit("at least one --token is required without --fake", 2)
		}
		sum, err = runLive(ctx, LiveConfig{
			BaseURL: strings.TrimRight(c.String("base-url"), "/"),
			OrderID: c.String("order"),
			Tokens:  tokens,
		}, log)
	}
	if err != nil {
		return err
	}

	fmt.Println("\n== Summary ==")
	fmt.Printf("RACERS=%d WINNERS=%d CONFLICTS=%d OTHER=%d p50=%s max=%s\n",
		sum.Racers, sum.Winners, sum.Conflicts, sum.Other, sum.Percentile(50), sum.Percentile(100))
	for kind, n := range sum.OtherKinds {
		fmt.Printf("  %s=%d\n", kind, n)
	}
	if sum.Winners != 1 {
		return cli.Exit(fmt.Sprintf("expected exactly one winner, got %d", sum.Winners), 1)
	}
	return nil
}
