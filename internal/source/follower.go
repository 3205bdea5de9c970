package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the fallback re-read period for filesystems that
// drop change notifications.
const DefaultPollInterval = 2 * time.Second

// Follower tails one transcript and hands each newly appended entry to a
// callback. Only complete lines are parsed; a trailing partial line is kept
// until its newline arrives.
type Follower struct {
	path         string
	offset       int64
	partial      []byte
	pollInterval time.Duration
}

// NewFollower returns a follower that starts reading path at offset. Use the
// file size to skip history, or zero to replay it.
func NewFollower(path string, offset int64) *Follower {
	return &Follower{path: path, offset: offset, pollInterval: DefaultPollInterval}
}

// SetPollInterval overrides the fallback poll period. Non-positive disables
// polling.
func (f *Follower) SetPollInterval(d time.Duration) {
	f.pollInterval = d
}

// Offset is the byte position just past the last complete line consumed.
func (f *Follower) Offset() int64 {
	return f.offset - int64(len(f.partial))
}

// Path returns the followed file.
func (f *Follower) Path() string { return f.path }

// Run reads whatever is already past the offset, then follows appends until
// ctx is canceled. fn is called on the Run goroutine.
func (f *Follower) Run(ctx context.Context, fn func(Entry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so a transcript created after we start is seen.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(f.path), err)
	}

	if err := f.Drain(fn); err != nil {
		return err
	}

	var tick <-chan time.Time
	if f.pollInterval > 0 {
		ticker := time.NewTicker(f.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if err := f.Drain(fn); err != nil {
					log.Printf("follower level=warn event=read path=%s err=%v", f.path, err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("follower level=warn event=watch path=%s err=%v", f.path, err)
		case <-tick:
			if err := f.Drain(fn); err != nil {
				log.Printf("follower level=warn event=poll path=%s err=%v", f.path, err)
			}
		}
	}
}

// Drain reads every byte appended since the last call and emits the complete
// lines. A missing file is not an error. A file that shrank is treated as
// rewritten and read from the start.
func (f *Follower) Drain(fn func(Entry)) error {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < f.offset {
		f.offset = 0
		f.partial = nil
	}
	if info.Size() == f.offset {
		return nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}
	chunk, err := io.ReadAll(io.LimitReader(file, info.Size()-f.offset))
	if err != nil {
		return err
	}
	f.offset += int64(len(chunk))

	buf := append(f.partial, chunk...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(buf[:i])
		buf = buf[i+1:]
		if e, ok := ParseLine(line); ok {
			fn(e)
		}
	}
	f.partial = append([]byte(nil), buf...)
	return nil
}
