package messages

// StateMessage carries a full Logical State snapshot from the host. Payload
// is the encoded state (optionally lz4 compressed); Digest is the blake3 hash
// of the uncompressed encoding.
type StateMessage struct {
	Tick       uint64
	Compressed bool
	Payload    []byte
	Digest     string
}
