package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes model.Operator over a Unix domain socket.
// Commands return true on success.
//
//   Method              Params                     Result
//   ────────────────    ───────────────────────    ──────────────
//   Begin               (none)                     bool
//   Halt                (none)                     bool
//   Confirm             (none)                     bool
//   PanCamera           {Direction: string}        bool
//   PanCameraRelease    (none)                     bool
//   LiftJog             {Direction: string}        bool
//   LiftRelease         (none)                     bool
//   Status              (none)                     StatusSnapshot
//
// Direction is one of left, right, up, down, stop.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (command rejected)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/cprd/cprd.sock, falling back to
// ~/.local/state/cprd/cprd.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "cprd", "cprd.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/cprd.sock"
	}
	return filepath.Join(home, ".local", "state", "cprd", "cprd.sock")
}
