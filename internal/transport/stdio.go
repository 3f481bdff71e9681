// Package transport carries JSON-RPC requests and notifications between a
// client and internal/protocol.Server: one newline-delimited-JSON stream
// over stdio, or one JSON body per HTTP request. Both drive the same
// protocol.Server.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/amem-mcp/amem-mcp/internal/logging"
	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/protocol"
)

// Stdio serves protocol.Server over newline-delimited JSON on an arbitrary
// reader/writer pair (stdin/stdout in production, pipes in tests).
type Stdio struct {
	server *protocol.Server
	in     *bufio.Scanner
	out    *bufio.Writer
	outMu  sync.Mutex
}

// NewStdio wraps r/w for line-delimited JSON-RPC traffic. The scanner's
// buffer is grown generously since a single request (e.g. a batch
// memory_add) can exceed bufio's 64KiB default token size.
func NewStdio(server *protocol.Server, r io.Reader, w io.Writer) *Stdio {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Stdio{
		server: server,
		in:     scanner,
		out:    bufio.NewWriter(w),
	}
}

// Serve reads one JSON-RPC message per line until EOF or ctx is
// cancelled, dispatching each to the protocol server and writing any
// response back. Malformed lines produce a ParseError response rather
// than killing the loop.
func (s *Stdio) Serve(ctx context.Context) error {
	for s.in.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := s.in.Bytes()
		if len(line) == 0 {
			continue
		}

		var req mcptypes.Request
		if err := json.Unmarshal(line, &req); err != nil {
			logging.Component("transport/stdio").Warn().Err(err).Msg("malformed request line")
			resp := mcptypes.NewErrorResponse(nil, mcptypes.NewErrorf(mcptypes.ParseError, "invalid JSON: %v", err))
			s.writeResponse(resp)
			continue
		}

		resp := s.server.Handle(ctx, req)
		if resp != nil {
			s.writeResponse(*resp)
		}
	}
	if err := s.in.Err(); err != nil {
		return err
	}
	return nil
}

func (s *Stdio) writeResponse(resp mcptypes.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Component("transport/stdio").Error().Err(err).Msg("failed to encode response")
		return
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.out.Write(data)
	s.out.WriteByte('\n')
	s.out.Flush()
}
