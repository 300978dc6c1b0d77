// Package cache persists portal session cookies between runs.
//
// Logging in to the owner portal requires a multi-step SSO exchange, so clients benefit from
// reusing cookies from a previous run. A [Store] is consulted when establishing a session: if it
// holds a fresh cookie set that the portal still accepts, the login exchange is skipped entirely.
// After any fresh login the store is overwritten with the new cookies.
//
// Cookie files grant full access to the associated account. Access controls should be used to
// prevent third parties from reading them.
package cache
