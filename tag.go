package mvi

// Tag is a type-safe key for metadata
type Tag[T any] struct {
	key string
}

// NewTag creates a new tag with the given key
func NewTag[T any](key string) Tag[T] {
	return Tag[T]{key: key}
}

// Key returns the tag's key (for debugging)
func (t Tag[T]) Key() string {
	return t.key
}

// Tagged is implemented by everything that carries tags: features and the
// root store.
type Tagged interface {
	GetTag(tag any) (any, bool)
	SetTag(tag any, val any)
}

// Get retrieves the tag value
func (t Tag[T]) Get(src Tagged) (T, bool) {
	val, ok := src.GetTag(t)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := val.(T)
	return typed, ok
}

// MustGet retrieves the tag value or panics if not found
func (t Tag[T]) MustGet(src Tagged) T {
	val, ok := t.Get(src)
	if !ok {
		panic("tag " + t.key + " not found")
	}
	return val
}

// GetOrDefault retrieves the tag value or returns a default
func (t Tag[T]) GetOrDefault(src Tagged, defaultVal T) T {
	if val, ok := t.Get(src); ok {
		return val
	}
	return defaultVal
}

// Set stores the tag value
func (t Tag[T]) Set(dst Tagged, val T) {
	dst.SetTag(t, val)
}

var (
	featureNameTag = NewTag[string]("feature.name")
	featureModeTag = NewTag[FeatureMode]("feature.mode")
)

// FeatureName is the tag holding a feature's display name.
func FeatureName() Tag[string] { return featureNameTag }

// Mode is the tag holding whether a feature is streaming or single-shot.
func Mode() Tag[FeatureMode] { return featureModeTag }
