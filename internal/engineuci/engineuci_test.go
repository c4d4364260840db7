package engineuci

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeEnv = "ENGINEUCI_FAKE"

// TestMain doubles as a scripted engine when the test binary is started by
// a Session.
func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeEnv); mode != "" {
		fakeEngine(mode)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func fakeEngine(mode string) {
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		cmd := strings.TrimSpace(in.Text())
		switch {
		case cmd == "uci":
			fmt.Println("id name fake")
			fmt.Println("uciok")
		case cmd == "isready":
			fmt.Println("readyok")
		case cmd == "quit":
			return
		case strings.HasPrefix(cmd, "go"):
			switch mode {
			case "crash":
				os.Exit(3)
			case "mate":
				fmt.Println("info depth 3 multipv 1 score mate 1 pv d8h4")
				fmt.Println("bestmove d8h4")
			case "none":
				fmt.Println("bestmove (none)")
			default:
				fmt.Println("info depth 1 multipv 1 score cp 10 pv e2e4 e7e5")
				fmt.Println("info depth 1 multipv 2 score cp 5 pv d2d4")
				fmt.Println("info depth 2 multipv 1 score cp 30 pv e2e4 c7c5")
				fmt.Println("bestmove e2e4 ponder c7c5")
			}
		}
	}
}

func binary(t *testing.T, mode string) string {
	t.Helper()
	t.Setenv(fakeEnv, mode)
	exe, err := os.Executable()
	require.NoError(t, err)
	return exe
}

func TestSession_Search(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Start(ctx, binary(t, "lines"), Options{MultiPV: 2})
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Search(ctx, "startpos", Limits{Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, "e2e4", res.BestMove)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, 30, *res.Lines[0].CP)
	assert.Equal(t, []string{"e2e4", "c7c5"}, res.Lines[0].Principal)
	assert.Equal(t, "d2d4", res.Lines[1].Move)

	_, err = s.Search(ctx, "startpos", Limits{})
	assert.Error(t, err, "a search needs a limit")
}

func TestSession_MateAndNoMove(t *testing.T) {
	ctx := context.Background()
	s, err := Start(ctx, binary(t, "mate"), Options{})
	require.NoError(t, err)
	res, err := s.Search(ctx, "startpos", Limits{MoveTimeMillis: 50})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Nil(t, res.Lines[0].CP)
	assert.Equal(t, 1, *res.Lines[0].Mate)
	require.NoError(t, s.Close())

	s, err = Start(ctx, binary(t, "none"), Options{})
	require.NoError(t, err)
	defer s.Close()
	res, err = s.Search(ctx, "startpos", Limits{Depth: 1})
	require.NoError(t, err)
	assert.Empty(t, res.BestMove)
}

func TestPool_DiscardsCrashedEngine(t *testing.T) {
	p, err := NewPool(PoolConfig{BinaryPath: binary(t, "crash"), Capacity: 1})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = p.Search(ctx, "startpos", Limits{Depth: 1})
	require.Error(t, err)

	// the slot must be free again for a fresh process
	_, err = p.Search(ctx, "startpos", Limits{Depth: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_ReusesAndCloses(t *testing.T) {
	p, err := NewPool(PoolConfig{BinaryPath: binary(t, "lines"), Capacity: 1})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := p.Search(ctx, "startpos", Limits{Depth: 1})
		require.NoError(t, err)
		assert.Equal(t, "e2e4", res.BestMove)
	}
	assert.Len(t, p.idle, 1)
	require.NoError(t, p.Close())
	_, err = p.Search(ctx, "startpos", Limits{Depth: 1})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestNewPool_MissingBinary(t *testing.T) {
	_, err := NewPool(PoolConfig{BinaryPath: "/nonexistent/engine"})
	assert.Error(t, err)
	_, err = NewPool(PoolConfig{})
	assert.Error(t, err)
}

func TestParseInfo(t *testing.T) {
	idx, ln, ok := parseInfo("info depth 12 seldepth 18 multipv 3 score cp -45 nodes 1000 pv g1f3 d7d5")
	require.True(t, ok)
	assert.Equal(t, 3, idx)
	assert.Equal(t, -45, *ln.CP)
	assert.Equal(t, "g1f3", ln.Move)

	_, _, ok = parseInfo("info depth 1 currmove e2e4 currmovenumber 1")
	assert.False(t, ok)
	_, _, ok = parseInfo("info depth 1 score cp 3 pv")
	assert.False(t, ok)
}

func TestPositionCommand(t *testing.T) {
	assert.Equal(t, "position startpos", positionCommand(""))
	assert.Equal(t, "position fen 8/8/8/8/8/8/8/K6k w - - 0 1", positionCommand(" 8/8/8/8/8/8/8/K6k w - - 0 1 "))
}
