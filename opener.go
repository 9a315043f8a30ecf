package rapidslogger

// Opener opens native modules. It is the only part of the loader that touches
// the platform's dynamic linking facilities, so tests and embedders can
// substitute an in-memory implementation.
type Opener interface {
	Open(path string) (Module, error)
}

// Module is an opened native module.
type Module interface {
	// Lookup resolves an exported symbol. Functions are returned as function
	// values, exported variables as pointers.
	Lookup(symbol string) (any, error)

	// Close releases the module. Implementations whose platform cannot unload
	// modules return nil.
	Close() error
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Module, error)

// Open implements Opener.
func (f OpenerFunc) Open(path string) (Module, error) {
	return f(path)
}
