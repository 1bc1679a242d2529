/*
Package session serializes access to user sessions.

Every event for a user runs inside Manager.WithLock, which holds a per-user
mutex (and, when configured, a distributed lock) for the whole
load-modify-save cycle. Locks for distinct users are independent, and lock
entries are reference counted so idle users cost nothing.
*/
package session
