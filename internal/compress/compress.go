// Package compress provides the codecs used to shrink archive and attachment
// blobs before they reach a storage backend.
package compress

import "fmt"

type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// ByName returns the codec registered under the given configuration name.
func ByName(name string) (Compress, error) {
	switch name {
	case "", "none":
		return NewNop(), nil
	case "gzip":
		return NewGZip(), nil
	case "lz4":
		return NewLZ4(), nil
	case "brotli":
		return NewBrotli(), nil
	}
	return nil, fmt.Errorf("unknown compression codec %q", name)
}
