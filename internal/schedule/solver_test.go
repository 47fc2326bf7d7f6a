package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	out   []byte
	err   error
	calls int
	input []byte
}

func (r *stubRunner) Run(ctx context.Context, input []byte) ([]byte, error) {
	r.calls++
	r.input = input
	return r.out, r.err
}

func solverRequest() models.SolverRequest {
	return models.SolverRequest{
		Unit:  models.SolverUnit{ID: 1, Code: "unit-a"},
		Month: "2024-03",
		Days:  []string{"2024-03-01"},
		Constraints: models.SolverConstraints{
			TimeLimit: 5,
		},
	}
}

func TestSolveParsesResponse(t *testing.T) {
	runner := &stubRunner{out: []byte(`{
		"assignments": [
			{"date": "2024-03-01", "shifts": {
				"NIGHT": {"user_id": 7},
				"DAY": [{"user_id": 2}, {"user_id": 3, "start_at": "10:00", "end_at": "19:00"}]
			}}
		],
		"summary": {"status": "FEASIBLE"}
	}`)}
	g := NewGateway(runner)

	resp, err := g.Solve(context.Background(), solverRequest())
	require.NoError(t, err)
	require.Len(t, resp.Assignments, 1)

	day := resp.Assignments[0]
	assert.Equal(t, "2024-03-01", day.Date)

	// Single-object and list forms both decode to assignee lists.
	require.Len(t, day.Shifts["NIGHT"], 1)
	assert.Equal(t, int64(7), day.Shifts["NIGHT"][0].UserID)
	require.Len(t, day.Shifts["DAY"], 2)
	require.NotNil(t, day.Shifts["DAY"][1].StartAt)
	assert.Equal(t, "10:00", *day.Shifts["DAY"][1].StartAt)

	assert.JSONEq(t, `{"status": "FEASIBLE"}`, string(resp.Summary))
	assert.Equal(t, 1, runner.calls)
	assert.Contains(t, string(runner.input), `"unit"`)
}

// hangingRunner blocks until the gateway's deadline fires.
type hangingRunner struct{}

func (r *hangingRunner) Run(ctx context.Context, input []byte) ([]byte, error) {
	<-ctx.Done()
	return nil, &runError{err: ctx.Err()}
}

func TestSolveTimeout(t *testing.T) {
	g := NewGateway(&hangingRunner{})

	req := solverRequest()
	req.Constraints.TimeLimit = 0.05
	_, err := g.Solve(context.Background(), req)
	require.ErrorIs(t, err, ErrSolverFailure)
	assert.Contains(t, err.Error(), "timed out")
}

func TestSolveDeclaredErrorOnStdout(t *testing.T) {
	runner := &stubRunner{
		out: []byte(`{"error": "no feasible schedule found"}`),
		err: &runError{err: errors.New("exit status 1")},
	}
	g := NewGateway(runner)

	_, err := g.Solve(context.Background(), solverRequest())
	require.EqualError(t, err, "solver failed: no feasible schedule found")
}

func TestSolveDeclaredErrorOnStderr(t *testing.T) {
	runner := &stubRunner{
		err: &runError{err: errors.New("exit status 1"), stderr: `{"error": "members list is empty"}`},
	}
	g := NewGateway(runner)

	_, err := g.Solve(context.Background(), solverRequest())
	require.EqualError(t, err, "solver failed: members list is empty")
}

func TestSolveResponseError(t *testing.T) {
	runner := &stubRunner{out: []byte(`{"assignments": [], "error": "infeasible"}`)}
	g := NewGateway(runner)

	_, err := g.Solve(context.Background(), solverRequest())
	require.EqualError(t, err, "solver failed: infeasible")
}

func TestSolveMissingAssignments(t *testing.T) {
	runner := &stubRunner{out: []byte(`{"summary": {}}`)}
	g := NewGateway(runner)

	_, err := g.Solve(context.Background(), solverRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing assignments")
}

func TestSolveMalformedOutput(t *testing.T) {
	runner := &stubRunner{out: []byte(`Traceback (most recent call last):`)}
	g := NewGateway(runner)

	_, err := g.Solve(context.Background(), solverRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestIsArchMismatch(t *testing.T) {
	mismatch := &runError{
		err:    errors.New("exit status 1"),
		stderr: "ImportError: ... (mach-o file, but is an incompatible architecture (have 'arm64', need 'x86_64'))",
	}
	assert.True(t, isArchMismatch(mismatch))

	badCPU := &runError{err: errors.New("exit status 86"), stderr: "arch: Bad CPU type in executable"}
	assert.True(t, isArchMismatch(badCPU))

	plain := &runError{err: errors.New("exit status 1"), stderr: "KeyError: 'unit'"}
	assert.False(t, isArchMismatch(plain))
	assert.False(t, isArchMismatch(errors.New("not a run error")))
}

func TestRunErrorMessageIncludesStderr(t *testing.T) {
	e := &runError{err: errors.New("exit status 1"), stderr: "boom\n"}
	assert.Equal(t, "exit status 1: boom", e.Error())
	assert.EqualError(t, errors.Unwrap(e), "exit status 1")
}

func archMismatchError() *runError {
	return &runError{
		err:    errors.New("exit status 1"),
		stderr: "ImportError: ... (mach-o file, but is an incompatible architecture (have 'arm64', need 'x86_64'))",
	}
}

func TestArchRetryRunnerRetriesOnce(t *testing.T) {
	base := &stubRunner{err: archMismatchError()}
	retry := &stubRunner{out: []byte(`{"assignments": []}`)}
	r := &archRetryRunner{base: base, retry: retry}

	out, err := r.Run(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, `{"assignments": []}`, string(out))
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, 1, retry.calls)
	assert.Equal(t, `{}`, string(retry.input))
}

func TestArchRetryRunnerDoesNotRetryTwice(t *testing.T) {
	base := &stubRunner{err: archMismatchError()}
	retry := &stubRunner{err: archMismatchError()}
	r := &archRetryRunner{base: base, retry: retry}

	_, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, isArchMismatch(err))
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, 1, retry.calls)
}

func TestArchRetryRunnerIgnoresOtherFailures(t *testing.T) {
	base := &stubRunner{err: &runError{err: errors.New("exit status 1"), stderr: "KeyError: 'unit'"}}
	retry := &stubRunner{}
	r := &archRetryRunner{base: base, retry: retry}

	_, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, 0, retry.calls)
}

func TestNewArchRetryRunnerCommandLines(t *testing.T) {
	r := newArchRetryRunner([]string{"python3", "x.py"})

	base, ok := r.base.(*execRunner)
	require.True(t, ok)
	assert.Equal(t, []string{"python3", "x.py"}, base.argv)

	retry, ok := r.retry.(*execRunner)
	require.True(t, ok)
	assert.Equal(t, []string{"arch", "-x86_64", "python3", "x.py"}, retry.argv)
}

func TestGatewayFromEnvCommandOverride(t *testing.T) {
	t.Setenv("SOLVER_CMD", "python3 custom.py")

	g := NewGatewayFromEnv()
	runner, ok := g.runner.(*execRunner)
	require.True(t, ok, "SOLVER_CMD disables the architecture retry")
	assert.Equal(t, []string{"python3", "custom.py"}, runner.argv)
}

func TestGatewayFromEnvDefaultsToRetryRunner(t *testing.T) {
	t.Setenv("SOLVER_CMD", "")
	t.Setenv("SOLVER_SCRIPT", "")

	g := NewGatewayFromEnv()
	r, ok := g.runner.(*archRetryRunner)
	require.True(t, ok)
	base, ok := r.base.(*execRunner)
	require.True(t, ok)
	assert.Equal(t, []string{"python3", DefaultSolverScript}, base.argv)
}
