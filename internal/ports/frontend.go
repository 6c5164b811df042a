package ports

// Frontend is a long-running surface over the query service
type Frontend interface {
	// Start starts serving in the background
	Start() error

	// Stop stops serving and releases the listener
	Stop() error
}
