// Package loader provides the feature loading system for the control API.
//
// Each feature implements the Feature interface, which defines its route
// registration logic. The Manager holds the registry and loads enabled features
// in registration order.
package loader
