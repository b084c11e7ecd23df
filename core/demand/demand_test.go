package demand

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/essim/core/factory"
	"github.com/kilianp07/essim/core/model"
)

func TestConstantAndFunc(t *testing.T) {
	ctx := context.Background()
	v, err := Constant(-4).RequestedPower(ctx, "s", 7)
	require.NoError(t, err)
	assert.Equal(t, -4.0, v)

	f := Func(func(_ context.Context, site string, tick int) (float64, error) {
		return float64(tick), nil
	})
	v, err = f.RequestedPower(ctx, "s", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestSchedule(t *testing.T) {
	ctx := context.Background()
	s := NewSchedule(map[string][]float64{"a": {1, 2, 3}}, false)
	v, _ := s.RequestedPower(ctx, "a", 1)
	assert.Equal(t, 2.0, v)
	v, _ = s.RequestedPower(ctx, "a", 5)
	assert.Zero(t, v)
	v, _ = s.RequestedPower(ctx, "unknown", 0)
	assert.Zero(t, v)

	s.Repeat = true
	v, _ = s.RequestedPower(ctx, "a", 4)
	assert.Equal(t, 2.0, v)

	require.NoError(t, s.Set("b", 4, -1))
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, []string{"a", "b"}, s.Sites())
	assert.Error(t, s.Set("b", -1, 0))
}

func TestReadCSV(t *testing.T) {
	data := "tick,site_id,power_kw\n0,s1,5\n1, s1, -2.5\n# comment\n0,s2,1\n"
	s, err := ReadCSV(strings.NewReader(data), false)
	require.NoError(t, err)
	ctx := context.Background()
	v, _ := s.RequestedPower(ctx, "s1", 1)
	assert.Equal(t, -2.5, v)
	v, _ = s.RequestedPower(ctx, "s2", 0)
	assert.Equal(t, 1.0, v)

	_, err = ReadCSV(strings.NewReader("x,s1,1\n"), false)
	assert.Error(t, err)
	_, err = ReadCSV(strings.NewReader("0,s1\n"), false)
	assert.Error(t, err)
}

func TestStream_BlocksUntilPushed(t *testing.T) {
	s := NewStream()
	got := make(chan float64, 1)
	go func() {
		v, err := s.RequestedPower(context.Background(), "s1", 2)
		if err == nil {
			got <- v
		}
	}()
	// Give the reader a chance to register before pushing.
	time.Sleep(10 * time.Millisecond)
	s.Push("s1", 2, 3.5)
	select {
	case v := <-got:
		assert.Equal(t, 3.5, v)
	case <-time.After(time.Second):
		t.Fatal("reader not released")
	}
}

func TestStream_BufferedAndCancel(t *testing.T) {
	s := NewStream()
	s.Push("s1", 0, 1)
	v, err := s.RequestedPower(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.RequestedPower(ctx, "s1", 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s.Close()
	_, err = s.RequestedPower(context.Background(), "s1", 1)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestNew(t *testing.T) {
	src, err := New(factory.ModuleConfig{Type: "constant", Conf: map[string]any{"power_kw": "-3"}})
	require.NoError(t, err)
	v, _ := src.RequestedPower(context.Background(), "s", 0)
	assert.Equal(t, -3.0, v)

	src, err = New(factory.ModuleConfig{Type: "schedule", Conf: map[string]any{
		"series": map[string]any{"s": []any{1, 2}},
	}})
	require.NoError(t, err)
	v, _ = src.RequestedPower(context.Background(), "s", 1)
	assert.Equal(t, 2.0, v)

	path := filepath.Join(t.TempDir(), "demand.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,s,4\n"), 0o600))
	src, err = New(factory.ModuleConfig{Type: "csv", Conf: map[string]any{"path": path}})
	require.NoError(t, err)
	v, _ = src.RequestedPower(context.Background(), "s", 0)
	assert.Equal(t, 4.0, v)

	_, err = New(factory.ModuleConfig{Type: "csv"})
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)
	_, err = New(factory.ModuleConfig{})
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)
	assert.Contains(t, Names(), "schedule")
}
