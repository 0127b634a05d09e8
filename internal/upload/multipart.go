package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// FromMultipart copies a multipart part into memory and wraps it as a File,
// so an upload worker can read it after the originating HTTP request (and
// its temp files) are gone. A part whose declared size exceeds maxBytes is
// never read: the returned File carries the declared size so the controller
// can reject it, and its Open fails. maxBytes <= 0 means unlimited.
func FromMultipart(fh *multipart.FileHeader, maxBytes int64) (File, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return File{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) {
				return nil, fmt.Errorf("file too large to buffer: %d bytes (max %d)", fh.Size, maxBytes)
			},
		}, nil
	}
	src, err := fh.Open()
	if err != nil {
		return File{}, err
	}
	defer func() { _ = src.Close() }()
	data, err := io.ReadAll(src)
	if err != nil {
		return File{}, err
	}
	return File{
		Name: fh.Filename,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}, nil
}
