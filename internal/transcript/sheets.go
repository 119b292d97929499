package transcript

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/magabrotheeeer/riya-bot/internal/models"
)

// SheetsSink дописывает строки в Google-таблицу.
type SheetsSink struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	writeRange    string
}

// NewSheets создаёт приёмник. credentialsJSON содержимое ключа сервисного
// аккаунта; если пусто, используются только переданные opts.
func NewSheets(ctx context.Context, spreadsheetID, writeRange, credentialsJSON string, opts ...option.ClientOption) (*SheetsSink, error) {
	const op = "transcript.NewSheets"
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)), option.WithScopes(sheets.SpreadsheetsScope))
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &SheetsSink{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		writeRange:    writeRange,
	}, nil
}

// Append добавляет одну строку после последней заполненной.
func (s *SheetsSink) Append(ctx context.Context, entry models.TranscriptEntry) error {
	const op = "transcript.SheetsSink.Append"
	vr := &sheets.ValueRange{Values: [][]interface{}{entry.Row()}}
	_, err := s.values.Append(s.spreadsheetID, s.writeRange, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
