package cloud

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enviroplan/internal/db"
	"enviroplan/internal/domain"
	"enviroplan/internal/migrate"
	"enviroplan/internal/repo"
)

type fakeRemote struct {
	records map[string]json.RawMessage
	fetch   []json.RawMessage
	fail    bool
	calls   int
}

func (f *fakeRemote) UpsertRaw(ctx context.Context, table, id string, payload []byte) error {
	f.calls++
	if f.fail {
		return errors.New("remote unavailable")
	}
	if f.records == nil {
		f.records = map[string]json.RawMessage{}
	}
	f.records[table+"/"+id] = json.RawMessage(payload)
	return nil
}

func (f *fakeRemote) Fetch(ctx context.Context, table string) ([]json.RawMessage, error) {
	if f.fail {
		return nil, errors.New("remote unavailable")
	}
	return f.fetch, nil
}

func newSyncDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return conn
}

func enqueue(t *testing.T, conn *sql.DB, id, payload string) {
	t.Helper()
	r := repo.Repo{DB: conn}
	tx, err := conn.Begin()
	require.NoError(t, err)
	require.NoError(t, r.EnqueueOutbox(context.Background(), tx, "activities", id, payload))
	require.NoError(t, tx.Commit())
}

func TestPushPendingDrainsOutbox(t *testing.T) {
	conn := newSyncDB(t)
	remote := &fakeRemote{}
	s := NewSyncer(conn, remote, nil)
	enqueue(t, conn, "a1", `{"id":"a1"}`)
	enqueue(t, conn, "a2", `{"id":"a2"}`)

	n, err := s.PushPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.JSONEq(t, `{"id":"a1"}`, string(remote.records["activities/a1"]))

	pending, err := s.Repo.PendingOutbox(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending, "delivered entries must leave the queue")
}

func TestPushPendingKeepsFailedEntries(t *testing.T) {
	conn := newSyncDB(t)
	remote := &fakeRemote{fail: true}
	s := NewSyncer(conn, remote, nil)
	enqueue(t, conn, "a1", `{"id":"a1"}`)

	n, err := s.PushPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := s.Repo.PendingOutbox(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "remote unavailable")

	// recovery on the next push
	remote.fail = false
	n, err = s.PushPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnqueueCoalescesPerRecord(t *testing.T) {
	conn := newSyncDB(t)
	s := NewSyncer(conn, &fakeRemote{}, nil)
	enqueue(t, conn, "a1", `{"id":"a1","status":"planned"}`)
	enqueue(t, conn, "a1", `{"id":"a1","status":"executed"}`)

	pending, err := s.Repo.PendingOutbox(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1, "writes for the same record must coalesce")
	assert.Contains(t, pending[0].Payload, "executed")
}

func TestPullAllRemoteWins(t *testing.T) {
	conn := newSyncDB(t)
	r := repo.Repo{DB: conn}
	local := domain.Activity{
		ID: "a1", Date: "2026-08-29", ProcessID: "P1", TaskID: "T1",
		PersonCount: 1, Status: domain.StatusPlanned,
		CreatedBy: "ana", CreatedAt: "2026-08-29T08:00:00Z", UpdatedAt: "2026-08-29T08:00:00Z",
	}
	require.NoError(t, r.UpsertActivity(context.Background(), local))

	remoteCopy := local
	remoteCopy.Status = domain.StatusExecuted
	raw, err := json.Marshal(remoteCopy)
	require.NoError(t, err)
	other := local
	other.ID = "a2"
	rawOther, err := json.Marshal(other)
	require.NoError(t, err)

	remote := &fakeRemote{fetch: []json.RawMessage{raw, rawOther, json.RawMessage(`{"broken`)}}
	s := NewSyncer(conn, remote, nil)
	n, err := s.PullAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "malformed rows are skipped")

	got, err := r.GetActivity(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, got.Status, "remote copy overwrites local")
	_, err = r.GetActivity(context.Background(), "a2")
	assert.NoError(t, err)
}
