/*
Package ports defines the driven ports (interfaces) of the protocol workflow.

These interfaces decouple the conversation engine from storage backends and
from the slow external collaborators it calls while handling an event.

# Key Interfaces

  - SessionStore: persists one Session per user id.
  - DistributedLocker: coordinates access to a user's session across replicas.
  - Transcriber, Formatter, Renderer: speech-to-text, list formatting, document rendering.
  - Authorizer, Notifier: allow-list check and admin notification.
*/
package ports
