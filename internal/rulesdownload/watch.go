package rulesdownload

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchCacheDir watches dir for a rule document dropped in directly by an
// operator or deployment process (bypassing LoadFromURL entirely), calling
// onChange with the file's path on every write or create event (events are
// not debounced). The watcher runs until stop is closed.
func WatchCacheDir(dir string, log *slog.Logger, onChange func(path string), stop <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange(ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("rules cache watch error", "error", err)
			case <-stop:
				return
			}
		}
	}()
	return nil
}
