// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

// Config tunes the policies described in spec §4.3. Its zero value, after
// defaultConfig fills it in, reproduces the spec's published constants; the
// With* options exist mainly so tests can drive the mapping path or the
// fragmentation path without allocating hundreds of megabytes first.
type Config struct {
	// Alignment is the alignment every returned user address satisfies,
	// fixed at 16. The allocator does not read this field: setting it to
	// another value does not change the alignment of returned addresses.
	Alignment int

	// MmapThreshold is the aligned request size at or above which
	// anonymous mapping is used instead of program-break extension.
	MmapThreshold int

	// FragmentationThreshold is the total_free/(total_free+total_allocated)
	// ratio above which mapping is preferred even for small requests.
	FragmentationThreshold float64

	// MinBrkExtension is the minimum number of bytes requested from the
	// kernel on each program-break extension.
	MinBrkExtension int

	// EmergencyFailureThreshold is the combined brk+mmap failure count
	// above which Statistics.EmergencyMode turns on.
	EmergencyFailureThreshold int
}

// Option configures an Allocator at construction time.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		Alignment:                 alignment,
		MmapThreshold:             mmapThreshold,
		FragmentationThreshold:    0.30,
		MinBrkExtension:           64 * 1024,
		EmergencyFailureThreshold: 10,
	}
}

// WithMmapThreshold overrides the size at which anonymous mapping is
// preferred over program-break extension.
func WithMmapThreshold(n int) Option {
	return func(c *Config) { c.MmapThreshold = n }
}

// WithFragmentationThreshold overrides the fragmentation ratio that forces
// mapping even for small requests.
func WithFragmentationThreshold(ratio float64) Option {
	return func(c *Config) { c.FragmentationThreshold = ratio }
}

// WithMinBrkExtension overrides the minimum size of a single program-break
// extension.
func WithMinBrkExtension(n int) Option {
	return func(c *Config) { c.MinBrkExtension = n }
}

// WithEmergencyFailureThreshold overrides the combined-failure count above
// which the allocator enters emergency mode.
func WithEmergencyFailureThreshold(n int) Option {
	return func(c *Config) { c.EmergencyFailureThreshold = n }
}
