// Package proofgen talks to the external circuit prover: a single
// persistent child process fed rollup witnesses over stdin and returning
// proofs over stdout, length-prefixed RLP-encoded in both directions. RLP
// is reused from the chain adapter's dependency
// (github.com/ethereum/go-ethereum/rlp) rather than introducing a second
// wire format. Grounded on the teacher's rollClient
// (cmd/cli/rollups.go), generalized from a framed TCP connection to a
// framed pipe to a child process.
package proofgen

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/veilchain/aggregator/internal/types"
)

// proverResponse is the wire shape the child process returns for one
// request. OK false means the prover rejected or failed to produce a proof
// for the submitted rollup; Proof is empty in that case.
type proverResponse struct {
	OK    bool
	Proof []byte
}

type request struct {
	rollup *types.Rollup
	respCh chan proverResponse
}

// Client owns one running prover child process and serializes every
// createProof call through a single background goroutine, matching the
// spec's "single persistent child" requirement.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stdoutCloser io.Closer

	reqCh   chan request
	closeCh chan struct{}
	once    sync.Once

	log *logrus.Entry
}

// Start spawns binaryPath with args and begins serving createProof requests.
// A nil env inherits the current process's environment.
func Start(binaryPath string, args []string, env []string, log *logrus.Entry) (*Client, error) {
	cmd := exec.Command(binaryPath, args...)
	if env != nil {
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, types.Wrap(types.ErrProofGenFailed, "opening prover stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, types.Wrap(types.ErrProofGenFailed, "opening prover stdout", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, types.Wrap(types.ErrProofGenFailed, "starting prover process", err)
	}

	c := &Client{
		cmd:          cmd,
		stdin:        stdin,
		stdout:       bufio.NewReader(stdout),
		stdoutCloser: stdout,
		reqCh:        make(chan request),
		closeCh:      make(chan struct{}),
		log:          log,
	}
	go c.run()
	return c, nil
}

func (c *Client) run() {
	for {
		select {
		case req, ok := <-c.reqCh:
			if !ok {
				return
			}
			resp, err := c.roundTrip(req.rollup)
			if err != nil {
				c.log.WithError(err).Warn("prover round trip failed")
				resp = proverResponse{OK: false}
			}
			req.respCh <- resp
		case <-c.closeCh:
			return
		}
	}
}

func (c *Client) roundTrip(rollup *types.Rollup) (proverResponse, error) {
	payload, err := rlp.EncodeToBytes(rollup)
	if err != nil {
		return proverResponse{}, types.Wrap(types.ErrProofGenFailed, "encoding rollup witness", err)
	}
	if err := writeFrame(c.stdin, payload); err != nil {
		return proverResponse{}, types.Wrap(types.ErrProofGenFailed, "writing to prover", err)
	}

	frame, err := readFrame(c.stdout)
	if err != nil {
		return proverResponse{}, types.Wrap(types.ErrProofGenFailed, "reading from prover", err)
	}

	var resp proverResponse
	if err := rlp.DecodeBytes(frame, &resp); err != nil {
		return proverResponse{}, types.Wrap(types.ErrProofGenFailed, "decoding prover response", err)
	}
	return resp, nil
}

// CreateProof submits rollup and blocks for the prover's response. ok=false
// (with a nil proof) is the expected outcome for a rejected or failed proof
// and for a client that has been cancelled; it is never reported as an
// error, per the spec's "Failure to prove returns None" contract.
func (c *Client) CreateProof(ctx context.Context, rollup *types.Rollup) (proof []byte, ok bool) {
	respCh := make(chan proverResponse, 1)
	select {
	case c.reqCh <- request{rollup: rollup, respCh: respCh}:
	case <-c.closeCh:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}

	select {
	case resp := <-respCh:
		return resp.Proof, resp.OK
	case <-c.closeCh:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Cancel aborts in-flight work and causes all subsequent CreateProof calls
// to resolve to (nil, false) immediately. Idempotent.
func (c *Client) Cancel() {
	c.once.Do(func() {
		close(c.closeCh)
		_ = c.stdin.Close()
		_ = c.stdoutCloser.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.cmd.Wait()
	})
}
