package sink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hakimelghazi/matching-core/internal/engine"
)

const insertEventSQL = `INSERT INTO order_events
	(id, kind, instrument, order_id, incoming_id, side, price, quantity, execution_seq, found, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Postgres journals every event to the order_events table. It is write-only;
// nothing reads the journal back into a book.
type Postgres struct {
	db batchSender
}

// NewPostgres takes a *pgxpool.Pool or anything else that sends batches.
func NewPostgres(db batchSender) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Deliver(ctx context.Context, batch []engine.Event) error {
	b := &pgx.Batch{}
	for _, ev := range batch {
		id, err := newUUID()
		if err != nil {
			return err
		}
		b.Queue(insertEventSQL, eventArgs(id, ev)...)
	}

	br := p.db.SendBatch(ctx, b)
	for i := range batch {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert %s event for order %d: %w", batch[i].Kind, batch[i].OrderID, err)
		}
	}
	return br.Close()
}

// the pool is owned by the caller
func (p *Postgres) Close() error { return nil }

func eventArgs(id pgtype.UUID, ev engine.Event) []any {
	return []any{
		id,
		ev.Kind.String(),
		nullText(ev.Instrument),
		int64(ev.OrderID),
		nullInt(ev.IncomingID, ev.Kind == engine.EventExecuted),
		nullText(string(ev.Side)),
		nullInt(ev.Price, ev.Kind != engine.EventDeleted),
		nullInt(ev.Quantity, ev.Kind != engine.EventDeleted),
		nullInt(ev.ExecutionSeq, ev.Kind == engine.EventExecuted),
		pgtype.Bool{Bool: ev.Found, Valid: ev.Kind == engine.EventDeleted},
		ev.Timestamp,
	}
}

func newUUID() (pgtype.UUID, error) {
	uid, err := uuid.NewRandom()
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: uid, Valid: true}, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func nullInt(v uint32, valid bool) pgtype.Int8 {
	return pgtype.Int8{Int64: int64(v), Valid: valid}
}
