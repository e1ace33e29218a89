// Package source loads workflow definitions from a directory and keeps them
// current.
//
// FileSource reads every *.yaml, *.yml and *.json file through the codec
// package. Catalog holds the loaded definitions for concurrent readers, and
// Watcher reloads them when files change, debouncing bursts of filesystem
// events (editors typically write a file several times per save).
//
//	src := source.NewFileSource("definitions", nil)
//	catalog := source.NewCatalog()
//	if _, err := catalog.Reload(ctx, src); err != nil {
//		return err
//	}
//
//	w, err := source.NewWatcher(source.DefaultWatcherConfig("definitions"), logger)
//	if err != nil {
//		return err
//	}
//	go w.Watch(ctx, func() error {
//		_, err := catalog.Reload(ctx, src)
//		return err
//	})
package source
