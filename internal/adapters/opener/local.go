package opener

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"

	"liaison/internal/ports"
)

// LocalOpener reads statements from the local filesystem, used by the
// command line import.
type LocalOpener struct{}

func (LocalOpener) Open(_ context.Context, filePath string) (io.ReadCloser, ports.Meta, error) {
	f, err := os.Open(filepath.Clean(filePath))
	if err != nil {
		return nil, ports.Meta{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ports.Meta{}, err
	}
	return f, ports.Meta{
		Source:      "file",
		ContentType: mime.TypeByExtension(filepath.Ext(filePath)),
		Size:        st.Size(),
	}, nil
}
