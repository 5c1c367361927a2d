package sqlstore

import (
	"time"

	"github.com/jmoiron/sqlx"

	"gardener/internal/domain"
)

const ItemsTable = "torrents"

type ItemStore = Table[domain.Item]

func NewItemStore(db *sqlx.DB, schema TableSchema) *ItemStore {
	return NewTable(db, ItemMapping(), schema)
}

// ItemMapping maps domain.Item onto the torrents table.
func ItemMapping() Mapping[domain.Item] {
	return Mapping[domain.Item]{
		Table:  ItemsTable,
		Key:    "torrent_id",
		ID:     func(i *domain.Item) int64 { return i.ID },
		KeyDst: func(i *domain.Item) any { return &i.ID },
		Fields: []Field[domain.Item]{
			{
				Column: "torrent_ptid",
				Value:  func(i *domain.Item) any { return i.ExternalID },
				Dest:   func(i *domain.Item) any { return stringScanner{&i.ExternalID} },
			},
			{
				Column: "torrent_title",
				Value:  func(i *domain.Item) any { return i.Title },
				Dest:   func(i *domain.Item) any { return stringScanner{&i.Title} },
			},
			{
				Column: "torrent_file",
				Value:  func(i *domain.Item) any { return i.PayloadPath },
				Dest:   func(i *domain.Item) any { return stringScanner{&i.PayloadPath} },
			},
			{
				Column: "t_add",
				Value:  func(i *domain.Item) any { return timeValue(i.AddedAt) },
				Dest:   func(i *domain.Item) any { return timeScanner{&i.AddedAt} },
			},
			{
				Column: "pattern_id",
				Value:  func(i *domain.Item) any { return zeroIDValue(i.PatternID) },
				Dest:   func(i *domain.Item) any { return zeroIDScanner{&i.PatternID} },
			},
			nullTimeField("t_start", func(i *domain.Item) **time.Time { return &i.DownloadStartedAt }),
			nullTimeField("t_complete", func(i *domain.Item) **time.Time { return &i.DownloadCompletedAt }),
			nullTimeField("t_remove", func(i *domain.Item) **time.Time { return &i.RemovedAt }),
		},
	}
}

func nullTimeField[T any](column string, field func(*T) **time.Time) Field[T] {
	return Field[T]{
		Column: column,
		Value:  func(e *T) any { return nullTimeValue(*field(e)) },
		Dest:   func(e *T) any { return nullTimeScanner{field(e)} },
	}
}
