package util

import "github.com/samber/mo"

func GetMapValueOptional[K comparable, V any](m map[K]V, key K) mo.Option[V] {
	if val, ok := m[key]; ok {
		return mo.Some(val)
	}
	return mo.None[V]()
}
