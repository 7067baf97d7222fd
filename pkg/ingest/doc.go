// Package ingest is the single entry point for documents.
//
// Webhook syncs and direct API calls both funnel through
// Service.IngestDocument, which deduplicates by content hash and starts the
// processing pipeline for new or changed content.
//
// Provider-specific shapes are handled by normalizers: gmail records carry
// their body inline, notion and google-drive sync metadata only, with page
// or file text supplied through a content map. The Gateway client fetches
// synced records from the OAuth gateway with cursor pagination; provider
// credentials never touch this codebase.
package ingest
