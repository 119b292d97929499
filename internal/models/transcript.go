package models

import "time"

// TranscriptEntry: одна строка журнала переписки.
type TranscriptEntry struct {
	Time         time.Time `json:"time"`
	UserID       int64     `json:"user_id"`
	MessageCount int       `json:"message_count"`
	Lang         string    `json:"lang"`
	UserMessage  string    `json:"user_message"`
	Reply        string    `json:"reply"`
}

// Row возвращает запись в виде строки таблицы.
func (e TranscriptEntry) Row() []any {
	return []any{
		e.Time.Format("2006-01-02 15:04:05"),
		e.UserID,
		e.MessageCount,
		e.Lang,
		e.UserMessage,
		e.Reply,
	}
}
