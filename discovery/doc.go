// Package discovery holds the set of known peers and matches their
// advertised capabilities against query requirements.
//
// The engine never discovers peers itself: a discovery collaborator
// (local network scan, DHT, registry) feeds the Directory, and the
// Matcher ranks the directory's peers for a given query.
//
// Matching is AND across a query's required descriptors and OR across
// a peer's owned capabilities per descriptor. The match score is the
// fraction of required descriptors satisfied; ties break on peer
// reputation, then matched-capability count, then peer ID, so output
// order is fully deterministic.
package discovery
