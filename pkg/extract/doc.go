// Package extract turns document text into typed entities and relations.
//
// The client prompts a chat model in strict JSON mode at temperature zero
// and parses the fixed schema:
//
//	{
//	  "entities":  [{"type", "name", "email", "domain"}],
//	  "relations": [{"from_name", "to_name", "type", "evidence"}]
//	}
//
// Entity types are Person, Company, and Topic. A response that fails to
// parse is logged and treated as an empty result rather than an error, so
// a garbage completion never poisons the job queue with retries.
//
// Independent of the model, HeuristicEntities derives a Person from the
// author header and a Company from the author's email domain when the
// domain is not a public mail provider. Heuristic entities are merged in
// after extraction with model output taking precedence by name.
package extract
