package component

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name     string
	log      *[]string
	startErr error
	stopErr  error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Start(ctx context.Context) error {
	*r.log = append(*r.log, "start "+r.name)
	return r.startErr
}

func (r *recorder) Stop(ctx context.Context) error {
	*r.log = append(*r.log, "stop "+r.name)
	return r.stopErr
}

func TestOrchestratorOrder(t *testing.T) {
	var log []string
	o := NewOrchestrator()
	o.Register(&recorder{name: "a", log: &log})
	o.Register(&recorder{name: "b", log: &log, stopErr: errors.New("stuck")})
	o.Register(&recorder{name: "c", log: &log})

	ctx := context.Background()
	require.NoError(t, o.Start(ctx))
	err := o.Stop(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stop b")

	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}, log)
}

func TestOrchestratorRollsBackOnStartFailure(t *testing.T) {
	var log []string
	o := NewOrchestrator()
	o.Register(&recorder{name: "a", log: &log})
	o.Register(&recorder{name: "b", log: &log, startErr: errors.New("no")})
	o.Register(&recorder{name: "c", log: &log})

	ctx := context.Background()
	err := o.Start(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"start a", "start b", "stop a"}, log)

	require.NoError(t, o.Stop(ctx))
	assert.Len(t, log, 3)
}

func TestBaseGo(t *testing.T) {
	b := NewBase("x")
	b.StartContext(context.Background())

	done := make(chan struct{})
	b.Go(func() {
		<-b.Ctx.Done()
		close(done)
	})

	b.StopContext()
	<-done
	assert.Equal(t, "x", b.Name())
}
