// Command engine replays a command script through in-process sessions and
// prints the resulting events.
//
// Each script line is "<client> <command>", for example
//
//	alice B 1 GOOG 100 10
//	bob   S 2 GOOG 100 4
//	alice C 1
//
// A client gets its own session on first use. A bad command ends that
// client's session, as a server would drop its connection.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hakimelghazi/matching-core/internal/engine"
	"github.com/hakimelghazi/matching-core/internal/logging"
	"github.com/hakimelghazi/matching-core/internal/protocol"
)

type options struct {
	scope engine.CancelScope
	json  bool
}

func main() {
	scope := flag.String("scope", string(engine.ScopeSession), "cancel scope: session or global")
	asJSON := flag.Bool("json", false, "print events as JSON lines")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger, err := logging.New(*level, true)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	cs, err := engine.ParseCancelScope(*scope)
	if err != nil {
		fatal(err)
	}

	in := io.Reader(os.Stdin)
	if path := flag.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		in = f
	}

	if err := replay(in, os.Stdout, logger, options{scope: cs, json: *asJSON}); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "engine:", err)
	os.Exit(1)
}

// replay runs the script and writes one line per event to w.
func replay(r io.Reader, w io.Writer, logger *zap.Logger, opts options) error {
	out := bufio.NewWriter(w)
	var writeErr error
	emit := engine.SinkFunc(func(ev engine.Event) {
		if writeErr != nil {
			return
		}
		if opts.json {
			b, err := protocol.MarshalEvent(ev)
			if err != nil {
				writeErr = err
				return
			}
			b = append(b, '\n')
			_, writeErr = out.Write(b)
			return
		}
		b := protocol.AppendEvent(nil, ev)
		_, writeErr = out.Write(append(b, '\n'))
	})

	eng := engine.New(emit, engine.WithLogger(logger), engine.WithCancelScope(opts.scope))
	sessions := make(map[string]*engine.Session)
	dropped := make(map[string]bool)

	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("line %d: %w: want <client> <command>", n, protocol.ErrMalformed)
		}
		client, rest := fields[0], strings.Join(fields[1:], " ")
		if dropped[client] {
			continue
		}
		sess, ok := sessions[client]
		if !ok {
			sess = eng.NewSession(client)
			sessions[client] = sess
		}

		cmd, err := protocol.ParseCommand(rest)
		if err == nil {
			err = sess.Handle(cmd)
		}
		if err != nil {
			logger.Warn("session dropped", zap.String("client", client), zap.Int("line", n), zap.Error(err))
			sess.Close()
			delete(sessions, client)
			dropped[client] = true
		}
		if writeErr != nil {
			return writeErr
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	for _, sess := range sessions {
		sess.Close()
	}
	return errors.Join(writeErr, out.Flush())
}
