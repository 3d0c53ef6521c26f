// Package vcs provides read access to source trees stored in git.
package vcs

import "errors"

// ErrFileNotFound is returned when a path does not exist in a tree.
var ErrFileNotFound = errors.New("file not found in tree")

// Opener opens git repositories.
type Opener interface {
	// PlainOpenWithDetect opens a git repository, detecting .git in parent directories.
	PlainOpenWithDetect(path string) (Repository, error)
}

// Repository provides access to the commits of a git repository.
type Repository interface {
	// Root returns the absolute path of the working tree.
	Root() string
	// TreeAt resolves a revision (branch, tag, hash, HEAD~1, ...) to its tree.
	TreeAt(rev string) (Tree, error)
}

// TreeEntry represents a file in a git tree.
type TreeEntry struct {
	Path string
	Size int64
}

// Tree represents a git tree object.
type Tree interface {
	// File returns the content of the file at a slash-separated path.
	File(path string) ([]byte, error)
	// Entries returns all files in the tree (recursively).
	Entries() ([]TreeEntry, error)
}
