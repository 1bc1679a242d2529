/*
Package domain contains the core domain models of the meeting-protocol workflow.

It defines the per-user Session record, the workflow State enum together with its
transition table, the metadata fields collected from the user, and the sentinel
errors shared by every adapter. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Session: The durable per-user record (State, Metadata, Questions, Decisions).
  - State: One step of the guided data-collection workflow.
  - Transitions: The table (state -> input class, successor, retry edge) driving the engine.
  - Reply: What the host should show the user after an event, plus any terminal action.
*/
package domain
