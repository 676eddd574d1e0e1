package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears dir and returns an Output that writes one file
// per message into it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write http message", "id", id, "err", err)
	}
}

// MemoryOutput keeps messages in memory.
type MemoryOutput struct {
	mu       sync.Mutex
	Messages map[string]string
}

func (o *MemoryOutput) Write(id string, contents string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Messages == nil {
		o.Messages = map[string]string{}
	}
	o.Messages[id] = contents
}
