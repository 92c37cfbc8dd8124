// Package crawler defines the core types shared by the listing host crawler:
// search targets, canonical listing URLs, rendered page snapshots, the
// browsing session contract and the records handed to output sinks.
package crawler
