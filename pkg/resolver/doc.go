/*
Package resolver generates stable deduplication keys for extracted entities.

Two mentions of the same real-world entity must map to the same key so graph
merges collapse them into one node. Identity anchors in order of preference:
email for people, web domain for companies, normalized label otherwise.

Normalization applies NFKD decomposition, drops combining marks, lowercases,
and collapses whitespace, so "José  García" and "jose garcia" resolve to the
same key. Keys are workspace-scoped by the store layers; the resolver itself
is a pure function.
*/
package resolver
