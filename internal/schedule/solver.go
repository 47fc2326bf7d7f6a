package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
)

// DefaultSolverScript is the optimizer entry point relative to the repo root.
const DefaultSolverScript = "scripts/optimizer/generate_schedule.py"

// SolverRunner executes the external optimizer: the request document goes to
// the process's standard input, the response document comes back from its
// standard output.
type SolverRunner interface {
	Run(ctx context.Context, input []byte) ([]byte, error)
}

// runError carries the process's stderr so the gateway can decode the
// optimizer's {"error": ...} payloads and classify environment failures.
type runError struct {
	err    error
	stderr string
}

func (e *runError) Error() string {
	if e.stderr != "" {
		return fmt.Sprintf("%v: %s", e.err, strings.TrimSpace(e.stderr))
	}
	return e.err.Error()
}

func (e *runError) Unwrap() error { return e.err }

// execRunner runs a fixed argv with exec. One concrete runner exists per
// environment; selection happens at construction time.
type execRunner struct {
	argv []string
}

func (r *execRunner) Run(ctx context.Context, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &runError{err: err, stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

// archRetryRunner retries exactly once through the macOS architecture
// selection wrapper when the optimizer's native extensions were built for the
// wrong CPU. Any other failure, or a failure of the retry itself, passes
// through.
type archRetryRunner struct {
	base  SolverRunner
	retry SolverRunner
}

func newArchRetryRunner(argv []string) *archRetryRunner {
	return &archRetryRunner{
		base:  &execRunner{argv: argv},
		retry: &execRunner{argv: append([]string{"arch", "-x86_64"}, argv...)},
	}
}

func (r *archRetryRunner) Run(ctx context.Context, input []byte) ([]byte, error) {
	out, err := r.base.Run(ctx, input)
	if err == nil || !isArchMismatch(err) {
		return out, err
	}
	log.Printf("[SOLVER] architecture mismatch detected, retrying via arch wrapper")
	return r.retry.Run(ctx, input)
}

func isArchMismatch(err error) bool {
	re, ok := err.(*runError)
	if !ok {
		return false
	}
	text := strings.ToLower(re.stderr)
	return strings.Contains(text, "incompatible architecture") ||
		strings.Contains(text, "bad cpu type") ||
		strings.Contains(text, "mach-o file, but is an incompatible")
}

// Gateway invokes the external solver under the request's time limit and
// parses its response. It never touches storage.
type Gateway struct {
	runner SolverRunner
}

// NewGateway wraps a runner.
func NewGateway(runner SolverRunner) *Gateway {
	return &Gateway{runner: runner}
}

// NewGatewayFromEnv builds the gateway the server uses. SOLVER_CMD overrides
// the whole command line (space separated) and disables the architecture
// retry; otherwise the bundled python script is run with the retry decorator.
func NewGatewayFromEnv() *Gateway {
	if override := os.Getenv("SOLVER_CMD"); override != "" {
		return NewGateway(&execRunner{argv: strings.Fields(override)})
	}
	script := os.Getenv("SOLVER_SCRIPT")
	if script == "" {
		script = DefaultSolverScript
	}
	return NewGateway(newArchRetryRunner([]string{"python3", script}))
}

// Solve serializes the request, runs the solver under the configured time
// limit, and parses the response. Success requires the output to deserialize
// to an object containing an assignments array.
func (g *Gateway) Solve(ctx context.Context, req models.SolverRequest) (models.SolverResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return models.SolverResponse{}, fmt.Errorf("failed to encode solver request: %w", err)
	}

	limit := req.Constraints.TimeLimit
	if limit <= 0 {
		limit = DefaultTimeLimitSeconds
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(limit*float64(time.Second)))
	defer cancel()

	out, err := g.runner.Run(runCtx, payload)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return models.SolverResponse{}, fmt.Errorf("%w: timed out after %.0fs", ErrSolverFailure, limit)
		}
		if msg := declaredError(out, err); msg != "" {
			return models.SolverResponse{}, fmt.Errorf("%w: %s", ErrSolverFailure, msg)
		}
		return models.SolverResponse{}, fmt.Errorf("%w: %v", ErrSolverFailure, err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(out, &probe); err != nil {
		return models.SolverResponse{}, fmt.Errorf("%w: malformed output: %v", ErrSolverFailure, err)
	}
	var resp models.SolverResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return models.SolverResponse{}, fmt.Errorf("%w: malformed output: %v", ErrSolverFailure, err)
	}
	if resp.Error != "" {
		return models.SolverResponse{}, fmt.Errorf("%w: %s", ErrSolverFailure, resp.Error)
	}
	if _, ok := probe["assignments"]; !ok {
		return models.SolverResponse{}, fmt.Errorf("%w: output is missing assignments", ErrSolverFailure)
	}
	return resp, nil
}

// declaredError extracts the optimizer's declared {"error": ...} message from
// stdout or stderr of a failed run.
func declaredError(stdout []byte, err error) string {
	var decl struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(stdout, &decl) == nil && decl.Error != "" {
		return decl.Error
	}
	if re, ok := err.(*runError); ok {
		if json.Unmarshal([]byte(strings.TrimSpace(re.stderr)), &decl) == nil && decl.Error != "" {
			return decl.Error
		}
	}
	return ""
}
