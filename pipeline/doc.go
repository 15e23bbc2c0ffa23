// Package pipeline runs one ingest of one instrument: validate the request, fetch its bars, derive
// partition keys, store the artifacts and dispatch them for processing. Stages run strictly in order
// and the first failure ends the run.
package pipeline
