// Package pdfrag embeds the PDF ingestion and question answering pipeline in a Go program.
//
// Documents are split into overlapping chunks, embedded with an OpenAI-compatible
// provider and stored in Valkey/Redis, Qdrant or SQLite. Questions are answered
// from the best-scoring chunks of the caller's own documents.
//
//	client, err := pdfrag.New(ctx,
//	    pdfrag.WithValkey("localhost:6379", ""),
//	    pdfrag.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	res, _ := client.IngestFile(ctx, "alice", "data/handbook.pdf")
//	ans, _ := client.Ask(ctx, "alice", "How many vacation days do I get?")
//	fmt.Println(ans.Answer)
//
// Re-ingesting a file with the same title replaces its previous chunks.
package pdfrag
