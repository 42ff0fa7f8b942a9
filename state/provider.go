package state

// Provider produces the initial value of a slice. It is called once, when
// the slice's container is constructed.
type Provider[S any] interface {
	Provide() S
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc[S any] func() S

func (f ProviderFunc[S]) Provide() S {
	return f()
}

// Value returns a Provider that always yields v.
func Value[S any](v S) Provider[S] {
	return ProviderFunc[S](func() S { return v })
}
