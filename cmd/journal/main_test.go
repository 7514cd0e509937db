package main

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/trader/journal"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *journal.Journal {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	j, err := journal.Open(":memory:", logrus.NewEntry(l))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	at := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	j.OnOrder(hoops.Order{GameID: "5f0c2a9e-game", ID: 3, Kind: hoops.OrderLimit, Side: hoops.SideBuy, Quantity: 100, Price: 60, Accepted: true, Timestamp: at})
	j.OnFill(hoops.Fill{GameID: "5f0c2a9e-game", Side: hoops.SideBuy, Quantity: 100, Price: 60, Position: 100, Cash: 94000, CapitalRemaining: 94000, Timestamp: at})
	j.OnExit(hoops.Exit{GameID: "5f0c2a9e-game", Reason: hoops.ExitTakeProfit, PnL: 2500, HomeScore: 88, AwayScore: 80, Timestamp: at.Add(time.Hour)})
	return j
}

func TestRun_ListsGames(t *testing.T) {
	j := seeded(t)
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), &out, j, "", 10))

	s := out.String()
	assert.Contains(t, s, "5f0c2a9e")
	assert.NotContains(t, s, "5f0c2a9e-game")
	assert.Contains(t, s, "take_profit")
	assert.Contains(t, s, "88-80")
	assert.Contains(t, s, "Finished PnL: $2500.00")
}

func TestRun_GameDetail(t *testing.T) {
	j := seeded(t)
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), &out, j, "5f0c2a9e-game", 10))

	s := out.String()
	assert.Contains(t, s, "LIMIT")
	assert.Contains(t, s, "60.00")
	assert.Contains(t, s, "$94000.00")
}

func TestRun_Empty(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	j, err := journal.Open(":memory:", logrus.NewEntry(l))
	require.NoError(t, err)
	defer j.Close()

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, j, "", 0))
	assert.Equal(t, "no games recorded\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), &out, j, "missing", 0))
	assert.Contains(t, out.String(), "no orders or fills for game missing")
}
