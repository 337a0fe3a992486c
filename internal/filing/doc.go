// Package filing defines the domain types shared by the Form 4 crawl pipeline:
// daily index entries, parsed insider transactions, the storage-side rows they
// map to, and the collaborator interfaces (fetcher, checkpoint store, storage
// sessions, publisher) that the pipeline stages depend on.
package filing
