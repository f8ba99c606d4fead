package analytics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sailbuild/sail/internal/syspath"
)

// FileSink appends each batch of events as newline-delimited JSON to a file
// under .sail/, giving a run-local analytics trail without standing up a
// remote collector.
type FileSink struct {
	mu   sync.Mutex
	path syspath.AbsoluteSystemPath
}

// NewFileSink returns an append-only sink for path. The file is not opened
// here; RecordAnalyticsEvents creates it if needed on each write.
func NewFileSink(path syspath.AbsoluteSystemPath) *FileSink {
	return &FileSink{path: path}
}

// RecordAnalyticsEvents implements Sink.
func (f *FileSink) RecordAnalyticsEvents(events Events) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	os.MkdirAll(filepath.Dir(f.path.ToString()), 0o755)

	file, err := os.OpenFile(f.path.ToString(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}
	return nil
}
