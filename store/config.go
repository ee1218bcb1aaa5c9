package store

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// TablePrefix is prepended to every collection name to form the
	// DynamoDB table name.
	// Default: "livewall_"
	TablePrefix string

	// ConsistentReads requests strongly consistent Get and Scan.
	// Default: true
	ConsistentReads bool
}

// DefaultConfig returns the configuration used by the livewall server.
func DefaultConfig() Config {
	return Config{
		TablePrefix:     "livewall_",
		ConsistentReads: true,
	}
}

// TableName returns the physical table name for a collection.
func (c Config) TableName(collection string) string {
	return c.TablePrefix + collection
}

// validate fills in defaults for unset values.
func (c *Config) validate() {
	if c.TablePrefix == "" {
		c.TablePrefix = "livewall_"
	}
}
