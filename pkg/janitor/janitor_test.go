package janitor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/warden/pkg/janitor"
	"github.com/dmitrymomot/warden/pkg/paths"
)

type reporter struct {
	errs  []error
	names []string
}

func (r *reporter) Report(err error, name, _ string) {
	r.errs = append(r.errs, err)
	r.names = append(r.names, name)
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestSweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	res := paths.New(t.TempDir())

	touch(t, res.Tmp("old.bin"), now.Add(-48*time.Hour))
	touch(t, res.Tmp("fresh.bin"), now.Add(-time.Hour))
	touch(t, res.Tmp("olddir", "inner.txt"), now.Add(-48*time.Hour))
	require.NoError(t, os.Chtimes(res.Tmp("olddir"), now.Add(-48*time.Hour), now.Add(-48*time.Hour)))

	j := janitor.New(res,
		janitor.WithMaxAge(24*time.Hour),
		janitor.WithClock(func() time.Time { return now }),
	)

	result, err := j.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, janitor.Result{Removed: 2}, result)

	require.False(t, res.Stat(res.Tmp("old.bin")).Exists)
	require.False(t, res.Stat(res.Tmp("olddir")).Exists)
	require.True(t, res.Stat(res.Tmp("fresh.bin")).Exists)
}

func TestSweepMissingTmp(t *testing.T) {
	t.Parallel()

	result, err := janitor.New(paths.New(t.TempDir())).Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, result)
}

func TestSweepReportsFailures(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	res := paths.New(base)
	// tmp exists as a file, so it cannot be listed.
	touch(t, res.Tmp(), time.Now())

	rep := &reporter{}
	_, err := janitor.New(res, janitor.WithReporter(rep)).Sweep(context.Background())
	require.Error(t, err)
	require.Len(t, rep.errs, 1)
	require.Equal(t, []string{janitor.ReportName}, rep.names)

	var st interface{ StackTrace() pkgerrors.StackTrace }
	require.True(t, errors.As(rep.errs[0], &st))
}

func TestSweepCancelled(t *testing.T) {
	t.Parallel()

	now := time.Now()
	res := paths.New(t.TempDir())
	touch(t, res.Tmp("a"), now.Add(-72*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := janitor.New(res, janitor.WithClock(func() time.Time { return now })).Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, result.Removed)
}

func TestRunInvalidSchedule(t *testing.T) {
	t.Parallel()

	j := janitor.New(paths.New(t.TempDir()), janitor.WithSchedule("whenever"))
	require.ErrorIs(t, j.Run(context.Background()), janitor.ErrSchedule)
}

func TestRunStops(t *testing.T) {
	t.Parallel()

	j := janitor.New(paths.New(t.TempDir()), janitor.WithSchedule("@every 1h"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
