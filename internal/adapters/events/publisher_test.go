package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reactor/internal/adapters/events"
	"go.trai.ch/reactor/internal/core/domain"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	published  []message
	flushes    int
	drained    bool
	publishErr error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, message{subject, data})
	return nil
}

func (c *fakeConn) FlushWithContext(context.Context) error {
	c.flushes++
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := events.NewNATSPublisher(conn, "")

	core := domain.NewModuleName("org.example", "core")
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), &domain.Event{
		Kind:    domain.EventModuleEnded,
		BuildID: "b1",
		Module:  &core,
		Result:  domain.ResultUnstable,
		Time:    at,
	}))
	assert.Zero(t, conn.flushes)

	require.Len(t, conn.published, 1)
	assert.Equal(t, "reactor.events.module.ended", conn.published[0].subject)

	var got domain.Event
	require.NoError(t, json.Unmarshal(conn.published[0].data, &got))
	assert.Equal(t, "b1", got.BuildID)
	assert.Equal(t, core, *got.Module)
	assert.Equal(t, domain.ResultUnstable, got.Result)
}

func TestNATSPublisher_BuildFinishedFlushes(t *testing.T) {
	conn := &fakeConn{}
	p := events.NewNATSPublisher(conn, "ci.builds")

	require.NoError(t, p.Publish(context.Background(), &domain.Event{Kind: domain.EventBuildFinished, BuildID: "b1"}))
	assert.Equal(t, 1, conn.flushes)
	assert.Equal(t, "ci.builds.build.finished", conn.published[0].subject)

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestNATSPublisher_PublishError(t *testing.T) {
	boom := errors.New("connection closed")
	p := events.NewNATSPublisher(&fakeConn{publishErr: boom}, "")

	err := p.Publish(context.Background(), &domain.Event{Kind: domain.EventModuleStarted})
	assert.ErrorIs(t, err, boom)
}

func TestNoOpPublisher(t *testing.T) {
	var p events.NoOpPublisher
	assert.NoError(t, p.Publish(context.Background(), &domain.Event{Kind: domain.EventModuleStarted}))
	assert.NoError(t, p.Close())
}
