package engineuci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"go.uber.org/zap"
)

const defaultReadyTimeout = 4 * time.Second

type Options struct {
	Threads    int
	HashMB     int
	MultiPV    int
	SkillLevel int
}

func (o Options) withDefaults() Options {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.HashMB <= 0 {
		o.HashMB = 16
	}
	if o.MultiPV <= 0 {
		o.MultiPV = 1
	}
	if o.SkillLevel <= 0 || o.SkillLevel > 20 {
		o.SkillLevel = 20
	}
	return o
}

type Limits struct {
	Depth          int
	MoveTimeMillis int
}

// Line is one multipv line of the last completed depth. Mate is set instead
// of CP when the engine reports a forced mate.
type Line struct {
	Move      string
	CP        *int
	Mate      *int
	Principal []string
}

type Result struct {
	BestMove string
	Lines    []Line
}

// Session drives one engine process over the UCI protocol.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	readEr chan error
	done   chan struct{}

	mu     sync.Mutex
	search sync.Mutex
}

func Start(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, 64),
		readEr: make(chan error, 1),
		done:   make(chan struct{}),
	}
	go s.pump(bufio.NewReader(stdout))

	if err := s.initialize(ctx, opt.withDefaults()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// pump owns stdout so a timed-out read never leaves a reader goroutine
// racing the next one.
func (s *Session) pump(r *bufio.Reader) {
	for {
		line, err := r.ReadString('\n')
		if t := strings.TrimSpace(line); t != "" {
			select {
			case s.lines <- t:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.readEr <- err
			close(s.lines)
			return
		}
	}
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	for _, c := range []string{
		fmt.Sprintf("setoption name Threads value %d", opt.Threads),
		fmt.Sprintf("setoption name Hash value %d", opt.HashMB),
		fmt.Sprintf("setoption name MultiPV value %d", opt.MultiPV),
		fmt.Sprintf("setoption name Skill Level value %d", opt.SkillLevel),
	} {
		if err := s.send(c); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return s.EnsureReady(initCtx)
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()
	if err := s.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// Search analyses fen under limits and returns the best move with the
// reported lines ordered by multipv.
func (s *Session) Search(ctx context.Context, fen string, l Limits) (Result, error) {
	s.search.Lock()
	defer s.search.Unlock()

	goCmd, err := buildGo(l)
	if err != nil {
		return Result{}, err
	}
	if err := s.send(positionCommand(fen)); err != nil {
		return Result{}, fmt.Errorf("send position: %w", err)
	}
	if err := s.send(goCmd); err != nil {
		return Result{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout(l))
	defer cancel()

	lines := make(map[int]Line)
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			obslog.L().Warn("engine_uci_read_error", zap.String("fen", fen), zap.String("go", goCmd), zap.Error(err))
			return Result{}, fmt.Errorf("read line: %w", err)
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if idx, ln, ok := parseInfo(line); ok {
				lines[idx] = ln
			}
		case strings.HasPrefix(line, "bestmove"):
			parts := strings.Fields(line)
			res := Result{Lines: collapse(lines)}
			if len(parts) >= 2 && parts[1] != "(none)" {
				res.BestMove = parts[1]
			}
			return res, nil
		}
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.stdin != nil {
		_, _ = io.WriteString(s.stdin, "quit\n")
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		return io.ErrClosedPipe
	}
	_, err := io.WriteString(s.stdin, msg+"\n")
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			select {
			case err := <-s.readEr:
				return "", fmt.Errorf("engine exited: %w", err)
			default:
				return "", io.EOF
			}
		}
		return line, nil
	}
}

func positionCommand(fen string) string {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return "position startpos"
	}
	return "position fen " + fen
}

func buildGo(l Limits) (string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if len(args) == 1 {
		return "", fmt.Errorf("no search limits specified")
	}
	return strings.Join(args, " "), nil
}

func searchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis)*time.Millisecond*3 + 2*time.Second
	}
	d := time.Duration(l.Depth) * 300 * time.Millisecond
	if d < 6*time.Second {
		d = 6 * time.Second
	}
	if d > 20*time.Second {
		d = 20 * time.Second
	}
	return d
}

func parseInfo(line string) (int, Line, bool) {
	parts := strings.Fields(line)
	multipv := 1
	var out Line
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					multipv = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				if v, err := strconv.Atoi(parts[i+2]); err == nil {
					switch parts[i+1] {
					case "cp":
						out.CP = &v
					case "mate":
						out.Mate = &v
					}
				}
				i += 2
			}
		case "pv":
			if i+1 >= len(parts) {
				return 0, Line{}, false
			}
			out.Principal = append([]string(nil), parts[i+1:]...)
			out.Move = out.Principal[0]
			return multipv, out, true
		}
	}
	return 0, Line{}, false
}

func collapse(m map[int]Line) []Line {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]Line, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
