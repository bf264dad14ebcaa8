// Package host owns the tool-server processes of one review session.
//
// [Host.Initialize] spawns every configured server concurrently, performs the
// MCP handshake (initialize, notifications/initialized, tools/list) and
// registers the discovered tools. A server that fails any step is logged and
// left out; the review proceeds with the rest. [Host.RunReview] hands the
// shared registry to a review conversation, and [Host.Shutdown] stops every
// child process.
//
// The host also keeps an approximate token budget. It is bookkeeping only;
// the conversation's round cap is what bounds a session.
package host
