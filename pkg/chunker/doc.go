/*
Package chunker splits document text into overlapping chunks.

Split cuts on sentence boundaries (terminal punctuation followed by
whitespace) and greedily packs sentences into chunks of at most chunkSize
bytes, carrying the last overlap bytes of each chunk into the next so
evidence spanning a boundary stays retrievable. A sentence longer than
chunkSize is kept whole rather than cut mid-sentence.

Offsets are byte positions into the whitespace-trimmed input. Because the
overlap region is re-emitted at the head of the following chunk, neighbouring
offset ranges overlap; consumers must not assume disjoint ranges.

The output is fully deterministic, which the ingestion pipeline relies on
for idempotent re-chunking after a document update.
*/
package chunker
