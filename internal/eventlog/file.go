package eventlog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

// FileAppender writes the stream as JSON lines, one file per day. The local
// analog of the production SNS fan-out.
type FileAppender struct {
	Dir string
}

func (fa *FileAppender) Append(_ context.Context, e *ImportEvent) error {
	if err := os.MkdirAll(fa.Dir, 0750); err != nil {
		return err
	}
	filename := filepath.Join(fa.Dir, e.EventTime.Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(e)
}
