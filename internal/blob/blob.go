package blob

// Store persists attachment bytes and hands back a public URL. That is the
// whole contract the chat surface needs from a blob store.
type Store interface {
	// Put writes the blob under the given key and returns its public URL.
	Put(key string, contentType string, data []byte) (string, error)
}
