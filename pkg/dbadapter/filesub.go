package dbadapter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/sonic-net/linkmgrd-go/pkg/log"
)

// FileSubscriber watches a directory of one-file-per-key JSON rows and
// turns filesystem events into Notifications. It stands in for a
// subscriber backed by an external process writing to the real KV
// store, useful in integration tests that need a subscription source
// outside this process's own memStore.
type FileSubscriber struct {
	dir     string
	watcher *fsnotify.Watcher
	ch      chan Notification
}

// NewFileSubscriber starts watching dir; every create/write is parsed
// as FieldValues JSON and delivered as an OpSet, every remove as OpDel.
func NewFileSubscriber(dir string) (*FileSubscriber, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &FileSubscriber{dir: dir, watcher: w, ch: make(chan Notification, 64)}, nil
}

func (f *FileSubscriber) Notifications() <-chan Notification { return f.ch }

func (f *FileSubscriber) Run(ctx context.Context) error {
	defer f.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			f.handle(ev)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			log.Logger.Errorw("file subscriber watch error", "error", err, "dir", f.dir)
		}
	}
}

func (f *FileSubscriber) handle(ev fsnotify.Event) {
	key := filepath.Base(ev.Name)
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		f.ch <- Notification{Key: key, Op: OpDel}
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	data, err := os.ReadFile(ev.Name)
	if err != nil {
		return
	}
	var fields FieldValues
	if err := json.Unmarshal(data, &fields); err != nil {
		return
	}
	f.ch <- Notification{Key: key, Op: OpSet, Fields: fields}
}
