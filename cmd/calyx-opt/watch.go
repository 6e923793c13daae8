package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
)

// watch processes paths once and then again after every change, until ctx
// is done. Directories are watched instead of the files since editors
// often replace a file on save.
func (d *driver) watch(ctx context.Context, paths []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := make(map[string]string)
	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		watched[abs] = path
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := w.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	d.batch(paths)
	return d.loop(ctx, w.Events, w.Errors, watched)
}

func (d *driver) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, watched map[string]string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			path, ok := watched[ev.Name]
			if !ok {
				continue
			}
			color.New(color.FgCyan).Fprintf(d.errOut, "%s changed\n", path)
			d.process(path)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			color.New(color.FgRed).Fprintf(d.errOut, "watch: %s\n", err)
		}
	}
}
