// Package insync decides whether an observed container property is
// acceptably equivalent to its declared value.
//
// Most properties compare literally or as order-independent lists. Image,
// env and labels need engine lookups; those go through a Lookup, which is
// built for one resource in one reconciliation step and memoizes the image
// inspection it performs.
//
// A single out-of-sync property is enough to force the container to be
// recreated. Nothing in this package applies changes.
package insync
