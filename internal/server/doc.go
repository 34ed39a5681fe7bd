// Package server provides the HTTP surfaces of the assistant: the OAuth
// callback endpoint that completes browser-based Google authorization,
// health check endpoints for Kubernetes probes, and a dedicated
// Prometheus metrics server.
//
// # OAuth Callback
//
// CallbackServer serves the redirect endpoint registered with Google.
// It validates the CSRF state parameter against the flow tracker,
// exchanges the authorization code for tokens, stores the resulting
// credential, and confirms the outcome to the user through the chat
// notifier. The handler is safe to invoke concurrently for different
// state tokens; no lock is held across the token exchange.
//
// # Metrics
//
// MetricsServer serves Prometheus metrics on a dedicated port. This
// isolates metrics from the callback traffic, preventing unauthorized
// access to operational metrics.
package server
