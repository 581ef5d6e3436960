package table

// Option is a functional option for the table engine.
type Option func(*config)

type config struct {
	maxFileBytes       int64
	checkpointInterval int
	maxRetries         int
	user               string
	snapshotCacheSize  int
	newestFirstHistory bool
	writeWorkers       int
}

func defaultConfig() config {
	return config{
		maxFileBytes:       4 << 20,
		checkpointInterval: 10,
		maxRetries:         10,
		user:               "unknown",
		snapshotCacheSize:  32,
		writeWorkers:       4,
	}
}

// WithMaxFileBytes sets the target size at which row batches are split across
// data files.
func WithMaxFileBytes(n int64) Option {
	return func(c *config) {
		c.maxFileBytes = n
	}
}

// WithCheckpointInterval sets the number of commits between checkpoints. A
// non-positive interval disables checkpointing.
func WithCheckpointInterval(n int) Option {
	return func(c *config) {
		c.checkpointInterval = n
	}
}

// WithMaxRetries sets the number of commit attempts before a mutating
// operation fails with ErrConcurrentModification.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithUser sets the user identifier recorded in commit metadata.
func WithUser(user string) Option {
	return func(c *config) {
		c.user = user
	}
}

// WithSnapshotCacheSize sets the number of resolved snapshots to cache.
func WithSnapshotCacheSize(n int) Option {
	return func(c *config) {
		c.snapshotCacheSize = n
	}
}

// WithNewestFirstHistory reverses the order of DescribeHistory output.
func WithNewestFirstHistory() Option {
	return func(c *config) {
		c.newestFirstHistory = true
	}
}

// WithWriteWorkers sets the number of concurrent data file uploads and
// rewrites.
func WithWriteWorkers(n int) Option {
	return func(c *config) {
		c.writeWorkers = n
	}
}
