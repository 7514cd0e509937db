// courtside-journal prints games, orders and fills recorded by the agent.
//
// Usage:
//
//	courtside-journal -db courtside.db              # recent games
//	courtside-journal -db courtside.db -game <id>   # one game's orders and fills
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phenomenon0/courtside/pkg/logger"
	"github.com/phenomenon0/courtside/pkg/trader/journal"

	"github.com/olekukonko/tablewriter"
)

var (
	dbPath = flag.String("db", "courtside.db", "Journal SQLite path")
	gameID = flag.String("game", "", "Show orders and fills for one game")
	limit  = flag.Int("limit", 20, "Number of games to list (0 for all)")
)

func main() {
	flag.Parse()

	root, err := logger.Init(logger.Config{Level: "warn", Format: "text"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	j, err := journal.Open(*dbPath, logger.Component(root, "journal"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, os.Stdout, j, *gameID, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, j *journal.Journal, game string, n int) error {
	if game == "" {
		games, err := j.ListGames(ctx, n)
		if err != nil {
			return fmt.Errorf("list games: %w", err)
		}
		printGames(out, games)
		return nil
	}

	orders, err := j.GameOrders(ctx, game)
	if err != nil {
		return fmt.Errorf("orders: %w", err)
	}
	fills, err := j.GameFills(ctx, game)
	if err != nil {
		return fmt.Errorf("fills: %w", err)
	}
	if len(orders) == 0 && len(fills) == 0 {
		fmt.Fprintf(out, "no orders or fills for game %s\n", game)
		return nil
	}

	fmt.Fprintf(out, "\n  GAME %s\n\n", game)
	printOrders(out, orders)
	fmt.Fprintln(out)
	printFills(out, fills)
	return nil
}

func printGames(out io.Writer, games []journal.GameRecord) {
	if len(games) == 0 {
		fmt.Fprintln(out, "no games recorded")
		return
	}

	tbl := tablewriter.NewWriter(out)
	tbl.Header("Game", "Started", "Exit", "Score", "Events", "Orders", "Fills", "Position", "PnL")

	var total float64
	for _, g := range games {
		exit := "open"
		if g.Finished() {
			exit = g.ExitReason
			total += g.PnL
		}
		tbl.Append(
			shortID(g.GameID),
			g.StartedAt.Local().Format("01-02 15:04:05"),
			exit,
			fmt.Sprintf("%d-%d", g.HomeScore, g.AwayScore),
			fmt.Sprintf("%d", g.Events),
			fmt.Sprintf("%d", g.Orders),
			fmt.Sprintf("%d", g.Fills),
			fmt.Sprintf("%.2f", g.Position),
			fmt.Sprintf("$%.2f", g.PnL),
		)
	}
	tbl.Render()

	fmt.Fprintf(out, "\n  Finished PnL: $%.2f\n", total)
}

func printOrders(out io.Writer, orders []journal.OrderRecord) {
	tbl := tablewriter.NewWriter(out)
	tbl.Header("Time", "ID", "Kind", "Side", "Qty", "Price", "Accepted")
	for _, o := range orders {
		price := "-"
		if o.Kind == "LIMIT" {
			price = fmt.Sprintf("%.2f", o.Price)
		}
		tbl.Append(
			o.CreatedAt.Local().Format("15:04:05.000"),
			fmt.Sprintf("%d", o.VenueOrderID),
			o.Kind,
			o.Side,
			fmt.Sprintf("%.2f", o.Quantity),
			price,
			fmt.Sprintf("%t", o.Accepted),
		)
	}
	tbl.Render()
}

func printFills(out io.Writer, fills []journal.FillRecord) {
	tbl := tablewriter.NewWriter(out)
	tbl.Header("Time", "Side", "Qty", "Price", "Position", "Cash", "Capital")
	for _, f := range fills {
		tbl.Append(
			f.FilledAt.Local().Format("15:04:05.000"),
			f.Side,
			fmt.Sprintf("%.2f", f.Quantity),
			fmt.Sprintf("%.2f", f.Price),
			fmt.Sprintf("%.2f", f.Position),
			fmt.Sprintf("$%.2f", f.Cash),
			fmt.Sprintf("$%.2f", f.CapitalRemaining),
		)
	}
	tbl.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
