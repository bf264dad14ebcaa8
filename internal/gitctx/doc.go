// Package gitctx shells out to git for the inputs of a review: the diff of a
// revision range or of the index, per-file change statistics, and the commit
// messages in the range. It also provides the ignore-pattern predicate used
// when pre-loading changed files.
package gitctx
