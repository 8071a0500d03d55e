// Package interactsh implements the client side of the interactsh
// out-of-band interaction protocol.
//
// A Client registers a fresh RSA key pair and correlation ID with one of the
// configured collaborator providers and hands out a unique callback domain.
// Any DNS, HTTP or SMTP hit on that domain is recorded by the provider,
// encrypted for the client's key and returned by the next Poll.
//
// Lifecycle:
//
//	Unregistered --Register--> Registered --Deregister--> Deregistered
//
// Deregistered is terminal. The client never polls on its own; the caller
// drives Poll from its own scheduler (the oob command uses a ticker), and
// every event is handed to the registered Sink synchronously inside Poll.
package interactsh
