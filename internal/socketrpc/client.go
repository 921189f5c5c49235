package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cprmachine/cprd/internal/model"
)

// Client implements model.Operator over a Unix domain socket using JSON-RPC 2.0.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(30 * time.Second))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

var _ model.Operator = (*Client)(nil)

func (c *Client) command(method string, params interface{}) error {
	var ok bool
	return c.call(method, params, &ok)
}

func (c *Client) Begin() error {
	return c.command("Begin", map[string]interface{}{})
}

func (c *Client) HaltImmediately() error {
	return c.command("Halt", map[string]interface{}{})
}

func (c *Client) Confirm() error {
	return c.command("Confirm", map[string]interface{}{})
}

func (c *Client) PanCamera(dir model.Direction) error {
	return c.command("PanCamera", map[string]interface{}{"Direction": dir})
}

func (c *Client) PanCameraRelease() error {
	return c.command("PanCameraRelease", map[string]interface{}{})
}

func (c *Client) LiftJog(dir model.Direction) error {
	return c.command("LiftJog", map[string]interface{}{"Direction": dir})
}

func (c *Client) LiftRelease() error {
	return c.command("LiftRelease", map[string]interface{}{})
}

func (c *Client) Status() (model.StatusSnapshot, error) {
	var result model.StatusSnapshot
	err := c.call("Status", map[string]interface{}{}, &result)
	return result, err
}
