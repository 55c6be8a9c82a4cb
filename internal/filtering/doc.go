// Package filtering decides which mirror directories take part in a sync.
//
// Patterns are globs matched against the slash-separated path of an item
// relative to the mirror root, e.g. "modules/news" or "templates/draft_*".
// A pattern without a slash is also matched against the directory name
// alone, so "draft_*" excludes draft items of every kind.
//
// Exclude patterns take precedence over include patterns. With no include
// patterns every item that is not excluded takes part. Hidden directories
// (leading ".") are always excluded; the state directory and a .git
// directory live there.
//
// Matching uses github.com/gobwas/glob with '/' as separator, so "*" stays
// within one path segment and "**" crosses segments:
//
//   - "modules/*" matches "modules/news" but not "modules/news/sub"
//   - "**/tmp_*" matches "actions/tmp_save"
//   - "legacy?" matches "legacy1"
package filtering
