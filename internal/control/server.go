// Package control implements the aggregator's operational side channel: a
// small newline-delimited JSON/TCP listener that cmd/aggctl talks to, mirroring
// the teacher's rollClient/"~rollup" daemon route (cmd/cli/rollups.go) but
// carrying status/pause/resume instead of batch submit/challenge/finalize.
// Purely operational; nothing here participates in rollup soundness.
package control

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"github.com/sirupsen/logrus"
)

// Toggler is the narrow surface Server needs from BatchController;
// *batch.Controller satisfies it directly.
type Toggler interface {
	Pause()
	Resume()
	Paused() bool
}

// RollupIDSource reports the rollup id the aggregator will submit next;
// *rollup.Builder satisfies it directly.
type RollupIDSource interface {
	NextRollupID() uint64
}

type request struct {
	Action string `json:"action"`
}

type response struct {
	Paused       bool   `json:"paused,omitempty"`
	NextRollupID uint64 `json:"nextRollupId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Server accepts connections on a listener and handles one request per line.
type Server struct {
	toggler Toggler
	builder RollupIDSource
	log     *logrus.Entry
}

// New builds a Server around the given BatchController and RollupBuilder.
func New(toggler Toggler, builder RollupIDSource, log *logrus.Entry) *Server {
	return &Server{toggler: toggler, builder: builder, log: log}
}

// Serve accepts connections on ln until ctx is cancelled, handling each
// connection's requests on its own goroutine. Returns nil on clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	enc := json.NewEncoder(conn)

	for {
		line, err := rd.ReadBytes('\n')
		if len(line) > 0 {
			resp := s.dispatch(line)
			if encErr := enc.Encode(resp); encErr != nil {
				s.log.WithError(encErr).Warn("control connection write failed")
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) dispatch(line []byte) response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return response{Error: "malformed request"}
	}

	switch req.Action {
	case "status":
		return s.status()
	case "pause":
		s.toggler.Pause()
		return s.status()
	case "resume":
		s.toggler.Resume()
		return s.status()
	default:
		return response{Error: "unknown action: " + req.Action}
	}
}

func (s *Server) status() response {
	return response{
		Paused:       s.toggler.Paused(),
		NextRollupID: s.builder.NextRollupID(),
	}
}
