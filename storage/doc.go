// Package storage persists tables under partition keys.
//
// Two backends implement Backend: Local writes CSV files beneath a root directory and Cloud uploads
// the same bytes as objects into a bucket through an ObjectStore (S3-compatible via minio, or the
// Google Cloud Storage JSON API). Both name an artifact identically, `ticker=<I>/date=<D>.csv`, so a
// location can be addressed symmetrically on either target.
//
// Nothing here retries. A write either replaces the artifact at the key or leaves it untouched.
package storage
