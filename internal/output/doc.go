// Package output renders a review result in one of four formats:
//
//   - text: terminal output grouped by finding kind (default)
//   - json: the result document, finding lists always present
//   - markdown: a PR comment with one collapsible section per kind
//   - sarif: SARIF 2.1.0 for code-scanning uploads
//
// [GetWriter] maps a format name to a [Writer]. [WriteResult] also picks the
// destination, stdout or a file.
package output
