// Package importance classifies principals as foreground or background for
// admission throttling. The real signal comes from a platform process
// monitor; this package defines the boundary and an in-memory implementation.
package importance

import (
	"sync"

	"github.com/me/rangerd/pkg/model"
)

// Importance is a principal's process importance bucket.
type Importance int

const (
	Background Importance = iota
	Foreground
)

// String returns the string representation of the importance bucket.
func (i Importance) String() string {
	if i == Foreground {
		return "foreground"
	}
	return "background"
}

// Classifier reports the current importance of a principal. Implementations
// must be safe for concurrent use.
type Classifier interface {
	Importance(p model.Principal) Importance
}

// StaticClassifier is an in-memory Classifier. Unknown principals default to
// Background, the conservative bucket for throttling.
type StaticClassifier struct {
	mu         sync.Mutex
	foreground map[model.Principal]bool
}

// NewStaticClassifier creates a classifier with no foreground principals.
func NewStaticClassifier() *StaticClassifier {
	return &StaticClassifier{foreground: make(map[model.Principal]bool)}
}

// Set records the importance of a principal.
func (c *StaticClassifier) Set(p model.Principal, imp Importance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if imp == Foreground {
		c.foreground[p] = true
	} else {
		delete(c.foreground, p)
	}
}

// Importance implements Classifier.
func (c *StaticClassifier) Importance(p model.Principal) Importance {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.foreground[p] {
		return Foreground
	}
	return Background
}
