/*
Package bot routes transport events to the conversation engine.

Transports (HTTP, console, MCP) translate whatever they receive into an Event
and hand it to a Dispatcher. The Dispatcher runs a middleware chain
(authorization, panic recovery, logging) and then maps commands, text and
audio onto engine operations. Engine errors are turned into user-facing
messages; the error is still returned so the transport can log it.
*/
package bot
