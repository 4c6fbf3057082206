package license

// Authorizer answers whether premium features are unlocked.
type Authorizer interface {
	IsPro() bool
}

// Static is an Authorizer with a fixed answer, typically taken from
// configuration.
type Static bool

func (s Static) IsPro() bool {
	return bool(s)
}
