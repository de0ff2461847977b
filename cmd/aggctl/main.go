// Command aggctl is a thin operator CLI that talks to a running
// aggregator's control socket: status, pause, resume. Grounded on the
// teacher's rollClient / "~rollup" route (cmd/cli/rollups.go), adapted from
// a multi-subcommand batch-administration client to a three-verb
// pause/resume/status client over the same framed-JSON/TCP shape.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type controlClient struct {
	conn net.Conn
	rd   *bufio.Reader
}

func newControlClient() (*controlClient, error) {
	addr := viper.GetString("AGG_CONTROL_ADDR")
	if addr == "" {
		addr = "127.0.0.1:7961"
	}
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to aggregator control socket at %s: %w", addr, err)
	}
	return &controlClient{conn: conn, rd: bufio.NewReader(conn)}, nil
}

func (c *controlClient) Close() { _ = c.conn.Close() }

type statusResponse struct {
	Paused       bool   `json:"paused"`
	NextRollupID uint64 `json:"nextRollupId"`
	Error        string `json:"error,omitempty"`
}

func (c *controlClient) call(action string) (*statusResponse, error) {
	b, err := json.Marshal(map[string]string{"action": action})
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(append(b, '\n')); err != nil {
		return nil, err
	}
	var resp statusResponse
	if err := json.NewDecoder(c.rd).Decode(&resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return &resp, nil
}

func printStatus(resp *statusResponse) {
	state := "running"
	if resp.Paused {
		state = "paused"
	}
	fmt.Printf("state: %s\nnextRollupId: %d\n", state, resp.NextRollupID)
}

func runAction(action string) error {
	cli, err := newControlClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	resp, err := cli.call(action)
	if err != nil {
		return err
	}
	printStatus(resp)
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "aggctl",
	Short: "Operator CLI for a running aggregator's control socket",
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the aggregator is paused and its next rollup id",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction("status")
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop the aggregator from batching further transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction("pause")
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused aggregator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction("resume")
	},
}

func init() {
	viper.SetEnvPrefix("agg")
	viper.AutomaticEnv()
	rootCmd.PersistentFlags().String("control-addr", "", "host:port of the aggregator control socket")
	_ = viper.BindPFlag("AGG_CONTROL_ADDR", rootCmd.PersistentFlags().Lookup("control-addr"))

	rootCmd.AddCommand(statusCmd, pauseCmd, resumeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
