package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batch-screener/internal/storage"
)

func newMockStore(t *testing.T) (*CheckpointStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestWriteUpsertsRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	payload := []byte(`{"schema_version":1}`)

	mock.ExpectExec("INSERT INTO screener_checkpoints").
		WithArgs("batch_progress.json", payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Write(context.Background(), "batch_progress.json", payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadReturnsPayload(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT payload FROM screener_checkpoints").
		WithArgs("batch_progress.json").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow([]byte("blob")))

	data, err := store.Read(context.Background(), "batch_progress.json")
	require.NoError(t, err)
	require.Equal(t, []byte("blob"), data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadMissingRowIsNotFound(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT payload FROM screener_checkpoints").
		WithArgs("batch_progress.json").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Read(context.Background(), "batch_progress.json")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadWrapsDriverErrors(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery("SELECT payload").
		WithArgs("batch_progress.json").
		WillReturnError(boom)

	_, err := store.Read(context.Background(), "batch_progress.json")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAndEnsureSchema(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS screener_checkpoints").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("DELETE FROM screener_checkpoints").
		WithArgs("batch_progress.json").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, store.Delete(context.Background(), "batch_progress.json"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad;name")
	require.Error(t, err)
	_, err = NewWithPool(nil, "")
	require.Error(t, err)
}
