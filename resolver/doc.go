/*
Package resolver turns the declarations of a descriptor.Provider into live
subscriptions.

For each declaration the resolver validates it, locates (or creates) the named
event service, wraps the handler in a dispatch proxy and registers the proxy with
the service discipline the declaration asks for. A failing declaration never stops
its siblings; every failure comes back as a *descriptor.DeclarationError joined into
the returned error.

Weak declarations borrow their candidate from the resolver's lifetime.Arena. After
Release the proxies report dead and the service drops them on the next delivery.
*/
package resolver
