package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/communityhub/pkg/observability"
)

// withMockOpener routes opener to one sqlmock database per DSN
func withMockOpener(t *testing.T, dsns ...string) map[string]sqlmock.Sqlmock {
	t.Helper()
	dbs := make(map[string]*sql.DB, len(dsns))
	mocks := make(map[string]sqlmock.Sqlmock, len(dsns))
	for _, dsn := range dsns {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		dbs[dsn] = db
		mocks[dsn] = mock
	}

	orig := opener
	opener = func(dsn string) (*sql.DB, error) {
		db, ok := dbs[dsn]
		if !ok {
			return nil, errors.New("unknown dsn")
		}
		return db, nil
	}
	t.Cleanup(func() { opener = orig })
	return mocks
}

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"single", "postgres://a/db", []string{"postgres://a/db"}},
		{"whitespace and blanks", " postgres://a/db , ,postgres://b/db,", []string{"postgres://a/db", "postgres://b/db"}},
		{"only separators", " , , ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestNewConnectionManager_PrimaryOnly(t *testing.T) {
	mocks := withMockOpener(t, "primary")
	mocks["primary"].ExpectPing()

	cm, err := NewConnectionManager(ConnectionConfig{PrimaryURL: "primary", MaxConns: 10}, observability.NewNopLogger())
	require.NoError(t, err)

	assert.Same(t, cm.Primary(), cm.Replica(), "replica falls back to primary")
	assert.NoError(t, mocks["primary"].ExpectationsWereMet())
}

func TestNewConnectionManager_PrimaryDown(t *testing.T) {
	mocks := withMockOpener(t, "primary")
	mocks["primary"].ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err := NewConnectionManager(ConnectionConfig{PrimaryURL: "primary"}, observability.NewNopLogger())
	assert.Error(t, err)
}

func TestNewConnectionManager_SkipsUnreachableReplica(t *testing.T) {
	mocks := withMockOpener(t, "primary", "r1", "r2")
	mocks["primary"].ExpectPing()
	mocks["r1"].ExpectPing().WillReturnError(errors.New("down"))
	mocks["r2"].ExpectPing()

	cm, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL:  "primary",
		ReplicaURLs: []string{"r1", "r2"},
	}, observability.NewNopLogger())
	require.NoError(t, err)

	assert.NotSame(t, cm.Primary(), cm.Replica())
	assert.Same(t, cm.Replica(), cm.Replica(), "only one replica survived")
}

func TestConnectionManager_HealthCheck(t *testing.T) {
	mocks := withMockOpener(t, "primary", "r1")
	mocks["primary"].ExpectPing()
	mocks["r1"].ExpectPing()

	cm, err := NewConnectionManager(ConnectionConfig{PrimaryURL: "primary", ReplicaURLs: []string{"r1"}}, observability.NewNopLogger())
	require.NoError(t, err)

	mocks["primary"].ExpectPing()
	mocks["r1"].ExpectPing()
	assert.NoError(t, cm.HealthCheck(context.Background()))

	mocks["primary"].ExpectPing()
	mocks["r1"].ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, cm.HealthCheck(context.Background()))

	mocks["primary"].ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, cm.HealthCheck(context.Background()))
}

func TestReplicaPoolSize(t *testing.T) {
	assert.Equal(t, 2, replicaPoolSize(0))
	assert.Equal(t, 2, replicaPoolSize(3))
	assert.Equal(t, 10, replicaPoolSize(20))
}
