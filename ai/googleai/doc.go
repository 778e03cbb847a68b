// Package googleai implements ai.AIProvider on top of the Gemini embedding
// API via langchaingo.
//
//	cfg := ai.NewConfig(ai.WithAPIKey(os.Getenv("GOOGLE_API_KEY")))
//	provider, err := googleai.NewProvider(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
// Errors carry an ai.ErrorKind derived from the gRPC status when present,
// and from langchaingo's googleai.MapError otherwise.
package googleai
