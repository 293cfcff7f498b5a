// Package journal records MQTT messages in SQLite for later inspection.
//
// Handler writes one message_journal row per decoded message on its
// configured topics; the HTTP API pages through them with List. The
// journal is history only: messages are acknowledged to the broker whether
// or not the insert succeeds, and nothing is replayed from it.
//
//	repo := journal.NewSQLiteRepository(sqlDB)
//	b.AddHandler(journal.NewHandler(repo, cfg.Journal.Topics))
package journal
