// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package funcutil

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// Union returns the union of map-represented sets a and b. This mutates map a
// @mutates a
func Union[T comparable](a map[T]bool, b map[T]bool) map[T]bool {
	for x, yb := range b {
		a[x] = a[x] || yb
	}
	return a
}

// Map returns a new slice b such for any i <= len(a), b[i] = f(a[i])
func Map[T any, S any](a []T, f func(T) S) []S {
	b := make([]S, 0, len(a))
	for _, x := range a {
		b = append(b, f(x))
	}
	return b
}

// Exists returns true when there exists some x in slice a such that f(x), otherwise false.
func Exists[T any](a []T, f func(T) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}

// Contains returns true when there is some y in slice a such that x == y
func Contains[T comparable](a []T, x T) bool {
	return Exists(a, func(y T) bool { return x == y })
}

// SetOf returns the map-represented set of the elements of a
func SetOf[T comparable](a []T) map[T]bool {
	s := make(map[T]bool, len(a))
	for _, x := range a {
		s[x] = true
	}
	return s
}

// SetToOrderedSlice converts a set represented as a map from elements to booleans into a slice.
// Sorts the result in increasing order
func SetToOrderedSlice[T constraints.Ordered](set map[T]bool) []T {
	s := make([]T, 0, len(set))
	for r, b := range set {
		if b {
			s = append(s, r)
		}
	}
	slices.Sort(s)
	return s
}

// Dedup returns the elements of a without duplicates, in order of first occurrence.
func Dedup[T comparable](a []T) []T {
	seen := make(map[T]bool, len(a))
	var res []T
	for _, x := range a {
		if !seen[x] {
			seen[x] = true
			res = append(res, x)
		}
	}
	return res
}

// Group is one group of elements sharing the same key, as returned by GroupBy.
type Group[K comparable, T any] struct {
	Key   K
	Elems []T
}

// GroupBy partitions a by key. Groups are ordered by the first occurrence of their key in a, and the elements
// inside a group keep their relative order. If key returns an error, GroupBy stops and returns that error.
func GroupBy[K comparable, T any](a []T, key func(T) (K, error)) ([]Group[K, T], error) {
	index := map[K]int{}
	var groups []Group[K, T]
	for _, x := range a {
		k, err := key(x)
		if err != nil {
			return nil, err
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K, T]{Key: k})
		}
		groups[i].Elems = append(groups[i].Elems, x)
	}
	return groups, nil
}
