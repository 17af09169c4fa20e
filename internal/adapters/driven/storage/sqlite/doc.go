// Package sqlite provides durable storage for highlights and conversations
// in the viewer's shared annotation database.
//
// The highlights table belongs to the viewer: this package creates it only
// when absent and backfills the is_ai column on older databases without
// touching existing rows. The ai_sessions and ai_messages tables are owned
// here and managed through embedded migrations.
package sqlite
