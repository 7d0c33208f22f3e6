// Package kbase is the Go client for kbase knowledge stores: documents with
// metadata kept in a vector database and searched by embedding similarity,
// keywords, or both.
//
// # Low-level API
//
//	client, _ := kbase.New(kbase.WithSQLite("kb.sqlite"), kbase.WithHashingEmbedder(256))
//	defer client.Close()
//	kb := kbase.NewKnowledgeBase(
//	    kbase.NewDocument("Goroutines are lightweight threads.", kbase.WithID("go-1")),
//	)
//	_, _ = client.Load(ctx, kb, kbase.LoadOptions{Upsert: true})
//	res, _ := client.Query(ctx, "lightweight threads", &kbase.SearchOptions{Limit: 3})
//
// Client implements VectorDB, so every contract operation is available on
// it directly.
//
// # Typed API
//
//	type Note struct {
//	    ID    string `kbase:"id,id"`
//	    Title string `kbase:"title,name"`
//	    Body  string `kbase:"body,content"`
//	    Topic string `kbase:"topic,meta"`
//	}
//
//	idx, _ := kbase.NewIndex[Note](client)
//	_ = idx.Ensure(ctx)
//	_ = idx.Upsert(ctx, notes...)
//	hits, _ := idx.Search().Query("threads").Where("topic", "go").Limit(5).Do(ctx)
package kbase
