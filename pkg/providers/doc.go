// Package providers defines the boundary between the gateway core and the
// upstream model providers.
//
// The core never speaks a provider's wire protocol directly. Instead it
// dispatches through the Client interface, which accepts a normalized Request
// and returns either a normalized Response or a typed SendError. The error
// type carries enough classification (transport failure, HTTP status) for the
// router and circuit breakers to decide between retrying the next candidate
// and failing the request outright.
//
// Concrete adapters (HTTP clients for each upstream) live outside this
// module; anything implementing Client can be registered with the router.
package providers
