// Package files locates well files on disk and inside zip archives.
//
// Discovery walks a directory tree and returns every well file it finds,
// skipping __MACOSX folders, AppleDouble "._" files and "~$" lock files.
// ExtractWellFiles unpacks an archive into a scratch directory owned by a
// Manager, which removes it on Cleanup.
//
//	m := files.NewManager("")
//	defer m.Cleanup()
//	dir, _ := m.ScratchDir("plate-*")
//	wells, err := files.ExtractWellFiles("recording.zip", dir)
package files
