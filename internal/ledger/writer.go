package ledger

import (
	"context"
	"database/sql"
)

type txFn func(ctx context.Context, tx *sql.Tx) error

type sqliteJob struct {
	fn txFn
	ch chan error
}

// sqliteWriter funnels every durable write through one goroutine so appends
// commit in submission order even if the driver allowed more concurrency.
type sqliteWriter struct {
	db   *sql.DB
	jobs chan sqliteJob
	done chan struct{}
}

func newSQLiteWriter(db *sql.DB) *sqliteWriter {
	w := &sqliteWriter{
		db:   db,
		jobs: make(chan sqliteJob, 64),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *sqliteWriter) close() {
	close(w.jobs)
	<-w.done
}

func (w *sqliteWriter) do(ctx context.Context, fn txFn) error {
	ch := make(chan error, 1)
	j := sqliteJob{fn: fn, ch: ch}

	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	// An append is not cancellable once queued: the loop still commits it and
	// the result lands in the buffered channel. The ledger's startup recovery
	// re-verifies the tail, which resolves any write the caller never saw.
	return <-ch
}

func (w *sqliteWriter) loop() {
	defer close(w.done)

	for j := range w.jobs {
		tx, err := w.db.BeginTx(context.Background(), nil)
		if err != nil {
			j.ch <- err
			continue
		}

		if err := j.fn(context.Background(), tx); err != nil {
			_ = tx.Rollback()
			j.ch <- err
			continue
		}

		j.ch <- tx.Commit()
	}
}
