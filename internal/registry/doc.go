// Package registry maps tool names to the tool servers that implement them and
// routes tools/call requests.
//
// Application failures (an unknown tool, a tool reporting isError) come back
// as a [Result] with IsError set so they can be fed to the model. A failure of
// the connection itself comes back as a [*ServerError].
//
// Calls to tools marked cacheable in [Options] are memoized in memory for the
// lifetime of the registry, keyed by tool name and canonical arguments.
package registry
