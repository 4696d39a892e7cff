// Package docvault provides a Go client for the docvault HTTP API.
//
// docvault stores canonical document records in a tamper-evident record
// store and projects them into a keyword index and an optional vector index.
// Search merges both.
//
//	client, _ := docvault.New("http://localhost:8080", docvault.WithAPIKey(key))
//	doc, _ := client.Documents().Create(ctx, docvault.DocumentInput{
//	    Title:   "Hybrid search in Go",
//	    Content: "Keyword and vector legs run concurrently.",
//	    Tags:    []string{"go", "search"},
//	})
//	res, _ := client.Documents().Search(ctx, "hybrid", docvault.WithLimit(5))
//
// Errors returned by the server unwrap to the sentinel errors in this
// package; use errors.Is to check.
package docvault
