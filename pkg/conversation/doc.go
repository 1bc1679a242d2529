/*
Package conversation implements the guided protocol workflow.

The Engine is a table-driven state machine over domain.Transitions. Every
inbound event (a typed reply, a voice message, a recognized transcript) is
handled inside the user's session lock:

 1. load the session (domain.ErrNoActiveSession if there is none),
 2. apply the row of the transition table for its state,
 3. call collaborators (transcriber, formatter, renderer) as needed,
 4. save the session and return the next prompt.

Recoverable failures return a Reply that re-issues the current prompt along
with an error wrapping one of the domain sentinels, so transports can log the
error and still answer the user. Formatter failures never surface: the
normalizer takes over.
*/
package conversation
