package media

import "context"

// Media is a raw or bounded piece of site media (a photo of the works or a
// short video clip).
type Media struct {
	Path     string
	MIMEType string
	Size     int64
}

// Preprocessor compresses raw media into a bounded-size representation
// before it is attached to a record or sent for secondary analysis. The
// intake core only ever sees the resulting reference; compression is
// invoked by the form layer.
type Preprocessor interface {
	Compress(ctx context.Context, raw Media) (Media, error)
}
