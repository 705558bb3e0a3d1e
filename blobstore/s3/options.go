package s3

// UploadConfig configures the multipart uploader used by Create.
type UploadConfig struct {
	// PartSize is the minimum part size for multipart uploads.
	// Default: 8MB.
	PartSize int64

	// Concurrency is the number of concurrent part uploads.
	// Default: 5.
	Concurrency int

	// EnableChecksum requests CRC32C integrity validation from S3.
	// Default: true.
	EnableChecksum bool
}

// DefaultUploadConfig returns the upload settings used when none are given.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 * 1024 * 1024,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

type options struct {
	prefix       string
	region       string
	endpoint     string
	usePathStyle bool
	upload       UploadConfig
}

// Option configures a Store.
type Option func(*options)

// WithPrefix sets the key prefix prepended to every blob name.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithRegion overrides the region from the default AWS configuration.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint points the client at a custom S3-compatible endpoint and
// switches to path-style addressing.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
		o.usePathStyle = true
	}
}

// WithUploadConfig overrides the uploader settings.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *options) { o.upload = cfg }
}
