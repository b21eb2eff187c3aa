// Package kandinsky runs the Kandinsky 2.2 inpainting pipeline: two prior passes
// that turn prompts into image embeddings, then a decoder pass that paints the
// masked region of the source image.
//
// # Public API
//
//	model, err := kandinsky.Load(kandinsky.LoadConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	images, err := model.Inpaint(ctx, params, kandinsky.Callbacks{
//	    ImageEmbeds:    func(step int) { ... },
//	    NegativeEmbeds: func(step int) { ... },
//	    Decoder:        func(step int) { ... },
//	})
//
// Each callback receives the zero-based index of the step that just finished.
//
// # Build Tags
//
//   - Stub mode (default): go build
//     A deterministic synthetic backend walks every step and fills the masked
//     region, so the service can be exercised without a GPU.
//
//   - Native mode: CGO_ENABLED=1 go build -tags kandinsky
//     Links libkandinsky (prior + inpaint decoder) through cgo.
//
// # Thread Safety
//
// A Model owns an exclusive hardware resource. Inpaint calls are serialized;
// the service runs a single worker goroutine that is the model's only caller.
package kandinsky
